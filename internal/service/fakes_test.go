package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory repositories shared by the service tests.

type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	for _, token := range m.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

type mockProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	finds    int
	// afterFind runs once a row has been read, outside the lock
	afterFind func(ctx context.Context) error
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

// add stores an active product with the given stock and price
func (m *mockProductRepository) add(stock int, price string) *domain.Product {
	p := &domain.Product{
		ID:       uuid.New(),
		Name:     "Product " + price,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	m.mu.Lock()
	m.products[p.ID] = p
	m.mu.Unlock()
	return p
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *product
	m.products[product.ID] = &cp
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	cp := *product
	m.products[product.ID] = &cp
	return nil
}

func (m *mockProductRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.IsActive = active
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	m.finds++
	p, ok := m.products[id]
	hook := m.afterFind
	if !ok {
		m.mu.Unlock()
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	return &cp, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.products {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockProductRepository) Search(ctx context.Context, query string, activeOnly bool, page, pageSize int) ([]*domain.Product, int, error) {
	return m.List(ctx, repository.ProductFilter{ActiveOnly: activeOnly})
}

func (m *mockProductRepository) adjustStock(id uuid.UUID, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; ok {
		p.Stock += delta
	}
}

func (m *mockProductRepository) findCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finds
}

type mockCategoryRepository struct {
	categories map[uuid.UUID]*domain.Category
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{categories: make(map[uuid.UUID]*domain.Category)}
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	for _, c := range m.categories {
		if c.Name == category.Name {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	out := make([]*domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return c, nil
}

// mockCartRepository keeps carts in memory and applies the same stock guard
// as the SQL increment.
type mockCartRepository struct {
	mu       sync.Mutex
	products *mockProductRepository
	carts    map[uuid.UUID]*domain.Cart // by user id
	items    map[uuid.UUID][]*domain.CartItem
	failGet  error
}

func newMockCartRepository(products *mockProductRepository) *mockCartRepository {
	return &mockCartRepository{
		products: products,
		carts:    make(map[uuid.UUID]*domain.Cart),
		items:    make(map[uuid.UUID][]*domain.CartItem),
	}
}

func (m *mockCartRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	cart, ok := m.carts[userID]
	if !ok {
		cart = &domain.Cart{ID: uuid.New(), UserID: userID, CreatedAt: time.Now()}
		m.carts[userID] = cart
	}
	out := *cart
	return &out, nil
}

func (m *mockCartRepository) find(cartID, productID uuid.UUID) *domain.CartItem {
	for _, it := range m.items[cartID] {
		if it.ProductID == productID {
			return it
		}
	}
	return nil
}

func (m *mockCartRepository) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := m.find(cartID, productID)
	if it == nil {
		return nil, repository.ErrCartItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *mockCartRepository) ListLines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLineProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CartLineProduct
	for _, it := range m.items[cartID] {
		p, err := m.products.FindByID(ctx, it.ProductID)
		if err != nil {
			continue
		}
		out = append(out, domain.CartLineProduct{
			Line:    domain.CartLine{ProductID: it.ProductID, Quantity: it.Quantity, PriceAtAdd: it.PriceAtAdd},
			Product: *p,
		})
	}
	return out, nil
}

func (m *mockCartRepository) IncrementItem(ctx context.Context, cartID, productID uuid.UUID, quantity int, priceAtAdd decimal.Decimal) (*domain.CartItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.products.FindByID(ctx, productID)
	if err != nil || !p.IsActive {
		return nil, false, repository.ErrStockExceeded
	}
	it := m.find(cartID, productID)
	existing := 0
	if it != nil {
		existing = it.Quantity
	}
	if domain.ExceedsStock(existing, quantity, p.Stock) {
		return nil, false, repository.ErrStockExceeded
	}
	if it != nil {
		it.Quantity += quantity
		cp := *it
		return &cp, false, nil
	}
	it = &domain.CartItem{
		ID:         uuid.New(),
		CartID:     cartID,
		ProductID:  productID,
		Quantity:   quantity,
		PriceAtAdd: priceAtAdd,
	}
	m.items[cartID] = append(m.items[cartID], it)
	cp := *it
	return &cp, true, nil
}

func (m *mockCartRepository) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := m.find(cartID, productID)
	if it == nil {
		return repository.ErrCartItemNotFound
	}
	it.Quantity = quantity
	return nil
}

func (m *mockCartRepository) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items[cartID]
	for i, it := range items {
		if it.ProductID == productID {
			m.items[cartID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return repository.ErrCartItemNotFound
}

func (m *mockCartRepository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, cartID)
	return nil
}

func (m *mockCartRepository) cartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.carts)
}

type mockOrderRepository struct {
	orders    map[uuid.UUID]*domain.Order
	createErr error
	cart      *mockCartRepository
}

func newMockOrderRepository(cart *mockCartRepository) *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[uuid.UUID]*domain.Order), cart: cart}
}

func (m *mockOrderRepository) CreateFromCart(ctx context.Context, userID, cartID uuid.UUID) (*domain.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	lines, _ := m.cart.ListLines(ctx, cartID)
	if len(lines) == 0 {
		return nil, domain.ErrCartEmpty
	}
	order := &domain.Order{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      domain.OrderStatusPending,
		TotalAmount: decimal.Zero,
	}
	for _, lp := range lines {
		m.cart.products.adjustStock(lp.Line.ProductID, -lp.Line.Quantity)
		order.Items = append(order.Items, domain.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: lp.Line.ProductID,
			Name:      lp.Product.Name,
			Quantity:  lp.Line.Quantity,
			UnitPrice: lp.Product.Price,
		})
		order.TotalAmount = order.TotalAmount.Add(lp.Product.Price.Mul(decimal.NewFromInt(int64(lp.Line.Quantity))))
	}
	_ = m.cart.ClearItems(ctx, cartID)
	m.orders[order.ID] = order
	return order, nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return domain.ErrInvalidTransition
	}
	o.Status = to
	if to == domain.OrderStatusCancelled {
		for _, item := range o.Items {
			m.cart.products.adjustStock(item.ProductID, item.Quantity)
		}
	}
	return nil
}

type recordingPublisher struct {
	published []*domain.Order
	err       error
}

func (p *recordingPublisher) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, order)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var errBrokerDown = errors.New("broker unavailable")

type mockReviewRepository struct {
	mu       sync.Mutex
	products *mockProductRepository
	reviews  map[uuid.UUID]*domain.Review
}

func newMockReviewRepository(products *mockProductRepository) *mockReviewRepository {
	return &mockReviewRepository{products: products, reviews: make(map[uuid.UUID]*domain.Review)}
}

func (m *mockReviewRepository) Upsert(ctx context.Context, review *domain.Review) (bool, error) {
	product, err := m.products.FindByID(ctx, review.ProductID)
	if err != nil || !product.IsActive {
		return false, domain.ErrProductUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, existing := range m.reviews {
		if existing.ProductID == review.ProductID && existing.UserID == review.UserID {
			existing.Rating = review.Rating
			existing.Comment = review.Comment
			existing.UpdatedAt = now
			review.ID = existing.ID
			review.CreatedAt = existing.CreatedAt
			review.UpdatedAt = now
			return false, nil
		}
	}
	review.CreatedAt = now
	review.UpdatedAt = now
	stored := *review
	stored.Author = "Tester"
	m.reviews[review.ID] = &stored
	return true, nil
}

func (m *mockReviewRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	review, ok := m.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	cp := *review
	return &cp, nil
}

func (m *mockReviewRepository) ListByProduct(ctx context.Context, productID uuid.UUID, page, pageSize int) ([]*domain.Review, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Review{}
	for _, review := range m.reviews {
		if review.ProductID == productID {
			cp := *review
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockReviewRepository) Summary(ctx context.Context, productID uuid.UUID) (domain.RatingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var summary domain.RatingSummary
	sum := 0
	for _, review := range m.reviews {
		if review.ProductID == productID {
			summary.Count++
			sum += review.Rating
		}
	}
	if summary.Count > 0 {
		summary.Average = float64(sum) / float64(summary.Count)
	}
	return summary, nil
}

func (m *mockReviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[id]; !ok {
		return repository.ErrReviewNotFound
	}
	delete(m.reviews, id)
	return nil
}

type mockWishlistRepository struct {
	mu       sync.Mutex
	products *mockProductRepository
	saved    map[uuid.UUID][]uuid.UUID
}

func newMockWishlistRepository(products *mockProductRepository) *mockWishlistRepository {
	return &mockWishlistRepository{products: products, saved: make(map[uuid.UUID][]uuid.UUID)}
}

func (m *mockWishlistRepository) Add(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.saved[userID] {
		if id == productID {
			return false, nil
		}
	}
	m.saved[userID] = append(m.saved[userID], productID)
	return true, nil
}

func (m *mockWishlistRepository) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.saved[userID]
	for i, id := range ids {
		if id == productID {
			m.saved[userID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return repository.ErrWishlistItemNotFound
}

func (m *mockWishlistRepository) List(ctx context.Context, userID uuid.UUID) ([]*domain.WishlistItem, error) {
	m.mu.Lock()
	ids := append([]uuid.UUID(nil), m.saved[userID]...)
	m.mu.Unlock()

	items := []*domain.WishlistItem{}
	for _, id := range ids {
		product, err := m.products.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, &domain.WishlistItem{ID: uuid.New(), UserID: userID, ProductID: id, Product: product})
	}
	return items, nil
}

type mockConsentRepository struct {
	mu      sync.Mutex
	records []*domain.ConsentRecord
}

func (m *mockConsentRepository) Record(ctx context.Context, record *domain.ConsentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.records = append(m.records, &cp)
	return nil
}

func (m *mockConsentRepository) Latest(ctx context.Context, visitorID uuid.UUID) (*domain.ConsentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].VisitorID == visitorID {
			cp := *m.records[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrConsentNotFound
}
