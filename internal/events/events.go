package events

import (
	"context"
	"time"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	DefaultExchange       = "storefront.events"
	OrderPlacedRoutingKey = "order.placed.v1"
)

// Publisher emits domain events to other services
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, order *domain.Order) error
	Close() error
}

// OrderPlaced is published once an order has been committed
type OrderPlaced struct {
	EventType   string           `json:"eventType"`
	OrderID     string           `json:"orderId"`
	UserID      string           `json:"userId"`
	Items       []OrderItemEvent `json:"items"`
	TotalAmount decimal.Decimal  `json:"totalAmount"`
	Timestamp   time.Time        `json:"timestamp"`
}

type OrderItemEvent struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func newOrderPlaced(order *domain.Order) OrderPlaced {
	ev := OrderPlaced{
		EventType:   "OrderPlaced",
		OrderID:     order.ID.String(),
		UserID:      order.UserID.String(),
		Items:       make([]OrderItemEvent, 0, len(order.Items)),
		TotalAmount: order.TotalAmount,
		Timestamp:   time.Now().UTC(),
	}
	for _, it := range order.Items {
		ev.Items = append(ev.Items, OrderItemEvent{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return ev
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderPlaced(context.Context, *domain.Order) error { return nil }

func (NoopPublisher) Close() error { return nil }
