package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ProductInput carries the editable product fields
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  uuid.UUID
	ImageURL    string
	Stock       int
	IsActive    *bool
}

// CatalogService exposes products and categories to the storefront and the
// admin panel
type CatalogService interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	LookupProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error)
	SearchProducts(ctx context.Context, query string, activeOnly bool, page, pageSize int) ([]*domain.Product, int, error)
	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error)
	SetProductActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type catalogService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	cache        cache.ProductCache
	logger       *zap.Logger
	sfg          singleflight.Group

	// epochs counts invalidations per product so a lookup that read the
	// database before a write does not re-cache the old row
	mu     sync.Mutex
	epochs map[uuid.UUID]uint64
}

// NewCatalogService creates a catalog service. productCache may be nil, in
// which case every lookup goes to the database.
func NewCatalogService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	productCache cache.ProductCache,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		cache:        productCache,
		logger:       logger,
		epochs:       make(map[uuid.UUID]uint64),
	}
}

// GetProduct always reads the database. Use it wherever stock or the active
// flag decides what gets written.
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// LookupProduct serves read-only views. Concurrent misses for the same
// product share one database query.
func (s *catalogService) LookupProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if s.cache != nil {
		product, err := s.cache.Get(ctx, id)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Debug("product cache unavailable", zap.Error(err))
		}
	}

	// Waiters share this query, so it outlives the first caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := s.sfg.Do(id.String(), func() (interface{}, error) {
		epoch := s.epoch(id)
		product, err := s.productRepo.FindByID(flightCtx, id)
		if err != nil {
			return nil, err
		}
		if s.cache != nil && s.epoch(id) == epoch {
			if err := s.cache.Set(flightCtx, product); err != nil {
				s.logger.Debug("failed to cache product", zap.String("product_id", id.String()), zap.Error(err))
			}
			if s.epoch(id) != epoch {
				// invalidated while writing
				_ = s.cache.Delete(flightCtx, id)
			}
		}
		return product, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers get their own copy; the shared value may be handed to others.
	product := *v.(*domain.Product)
	return &product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	return s.productRepo.List(ctx, filter)
}

func (s *catalogService) SearchProducts(ctx context.Context, query string, activeOnly bool, page, pageSize int) ([]*domain.Product, int, error) {
	return s.productRepo.Search(ctx, query, activeOnly, page, pageSize)
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if _, err := s.categoryRepo.FindByID(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		CategoryID:  input.CategoryID,
		ImageURL:    input.ImageURL,
		Stock:       input.Stock,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.CategoryID != product.CategoryID {
		if _, err := s.categoryRepo.FindByID(ctx, input.CategoryID); err != nil {
			return nil, err
		}
	}

	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.CategoryID = input.CategoryID
	product.ImageURL = input.ImageURL
	product.Stock = input.Stock
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	product.UpdatedAt = time.Now().UTC()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	return product, nil
}

func (s *catalogService) SetProductActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Product, error) {
	if err := s.productRepo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	return s.productRepo.FindByID(ctx, id)
}

func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categoryRepo.List(ctx)
}

func (s *catalogService) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	category := &domain.Category{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func (s *catalogService) epoch(id uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epochs[id]
}

func (s *catalogService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	s.epochs[id]++
	s.mu.Unlock()
	s.sfg.Forget(id.String())

	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to invalidate cached product", zap.String("product_id", id.String()), zap.Error(err))
	}
}
