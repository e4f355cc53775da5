package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type envelope[T any] struct {
	Success bool                   `json:"success"`
	Data    T                      `json:"data"`
	Error   middleware.ErrorDetail `json:"error"`
}

func decodeEnvelope[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

func bearer(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Mock repositories for the user handler

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

// stubCatalog is an in-memory CatalogService
type stubCatalog struct {
	mu         sync.Mutex
	products   map[uuid.UUID]*domain.Product
	categories map[uuid.UUID]*domain.Category
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		products:   make(map[uuid.UUID]*domain.Product),
		categories: make(map[uuid.UUID]*domain.Category),
	}
}

func (s *stubCatalog) add(stock int, price string, active bool) *domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &domain.Product{
		ID:        uuid.New(),
		Name:      "Product " + price,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		IsActive:  active,
		CreatedAt: time.Now(),
	}
	s.products[p.ID] = p
	return p
}

func (s *stubCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubCatalog) LookupProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.GetProduct(ctx, id)
}

func (s *stubCatalog) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range s.products {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.CategoryID != nil && p.CategoryID != *filter.CategoryID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, len(out), nil
}

func (s *stubCatalog) SearchProducts(ctx context.Context, query string, activeOnly bool, page, pageSize int) ([]*domain.Product, int, error) {
	return s.ListProducts(ctx, repository.ProductFilter{ActiveOnly: activeOnly})
}

func (s *stubCatalog) CreateProduct(ctx context.Context, input service.ProductInput) (*domain.Product, error) {
	s.mu.Lock()
	_, ok := s.categories[input.CategoryID]
	s.mu.Unlock()
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	p := s.add(input.Stock, input.Price.StringFixed(2), input.IsActive == nil || *input.IsActive)
	p.Name = input.Name
	p.CategoryID = input.CategoryID
	return p, nil
}

func (s *stubCatalog) UpdateProduct(ctx context.Context, id uuid.UUID, input service.ProductInput) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	p.Name = input.Name
	p.Price = input.Price
	p.Stock = input.Stock
	return p, nil
}

func (s *stubCatalog) SetProductActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	p.IsActive = active
	cp := *p
	return &cp, nil
}

func (s *stubCatalog) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *stubCatalog) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.Category{}
	for _, c := range s.categories {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubCatalog) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Name == name {
			return nil, repository.ErrCategoryAlreadyExists
		}
	}
	c := &domain.Category{ID: uuid.New(), Name: name, Description: description}
	s.categories[c.ID] = c
	return c, nil
}

func (s *stubCatalog) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	delete(s.categories, id)
	return nil
}

// memCartRepository is an in-memory CartRepository that applies the stock
// guard the SQL increment applies
type memCartRepository struct {
	mu      sync.Mutex
	catalog *stubCatalog
	carts   map[uuid.UUID]uuid.UUID // user id -> cart id
	items   map[uuid.UUID]map[uuid.UUID]*domain.CartItem
}

func newMemCartRepository(catalog *stubCatalog) *memCartRepository {
	return &memCartRepository{
		catalog: catalog,
		carts:   make(map[uuid.UUID]uuid.UUID),
		items:   make(map[uuid.UUID]map[uuid.UUID]*domain.CartItem),
	}
}

func (m *memCartRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cartID, ok := m.carts[userID]
	if !ok {
		cartID = uuid.New()
		m.carts[userID] = cartID
		m.items[cartID] = make(map[uuid.UUID]*domain.CartItem)
	}
	return &domain.Cart{ID: cartID, UserID: userID}, nil
}

func (m *memCartRepository) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[cartID][productID]
	if !ok {
		return nil, repository.ErrCartItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memCartRepository) ListLines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLineProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CartLineProduct
	for _, it := range m.items[cartID] {
		p, err := m.catalog.GetProduct(ctx, it.ProductID)
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

func (m *memCartRepository) IncrementItem(ctx context.Context, cartID, productID uuid.UUID, quantity int, priceAtAdd decimal.Decimal) (*domain.CartItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.catalog.GetProduct(ctx, productID)
	if err != nil || !p.IsActive {
		return nil, false, repository.ErrStockExceeded
	}
	it, exists := m.items[cartID][productID]
	existing := 0
	if exists {
		existing = it.Quantity
	}
	if existing+quantity > p.Stock {
		return nil, false, repository.ErrStockExceeded
	}
	if !exists {
		it = &domain.CartItem{ID: uuid.New(), CartID: cartID, ProductID: productID, PriceAtAdd: priceAtAdd}
		m.items[cartID][productID] = it
	}
	it.Quantity += quantity
	cp := *it
	return &cp, !exists, nil
}

func (m *memCartRepository) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[cartID][productID]
	if !ok {
		return repository.ErrCartItemNotFound
	}
	it.Quantity = quantity
	return nil
}

func (m *memCartRepository) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[cartID][productID]; !ok {
		return repository.ErrCartItemNotFound
	}
	delete(m.items[cartID], productID)
	return nil
}

func (m *memCartRepository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[cartID] = make(map[uuid.UUID]*domain.CartItem)
	return nil
}

func (m *memCartRepository) quantity(userID, productID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.items[m.carts[userID]][productID]; ok {
		return it.Quantity
	}
	return 0
}
