package transport

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/cartcookie"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type cartTestEnv struct {
	catalog *stubCatalog
	carts   *memCartRepository
	router  chi.Router
}

func newCartTestEnv(cookie cartcookie.Options) *cartTestEnv {
	logger := zap.NewNop()
	catalog := newStubCatalog()
	carts := newMemCartRepository(catalog)
	handler := NewCartHandler(service.NewCartService(carts, catalog, logger), cookie, logger, true)

	router := chi.NewRouter()
	handler.RegisterRoutes(router, middleware.OptionalAuthMiddleware(testSecret, logger))
	return &cartTestEnv{catalog: catalog, carts: carts, router: router}
}

type cartRequest struct {
	method  string
	path    string
	body    interface{}
	cookies []*http.Cookie
	auth    string
}

func (e *cartTestEnv) do(cr cartRequest) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if cr.body != nil {
		_ = json.NewEncoder(&body).Encode(cr.body)
	}
	req := httptest.NewRequest(cr.method, cr.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if cr.auth != "" {
		req.Header.Set("Authorization", cr.auth)
	}
	for _, c := range cr.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *cartTestEnv) guestAdd(t *testing.T, productID uuid.UUID, quantity int, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(cartRequest{
		method:  http.MethodPost,
		path:    "/api/cart/items",
		body:    AddCartItemRequest{ProductID: productID.String(), Quantity: quantity},
		cookies: cookies,
	})
}

func guestCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	c := findCookie(w, cartcookie.DefaultName)
	require.NotNil(t, c, "guest cart cookie not written")
	return c
}

func TestCartHandler_GuestAddWritesCookie(t *testing.T) {
	env := newCartTestEnv(cartcookie.Options{MaxAge: 7 * 24 * time.Hour})
	product := env.catalog.add(10, "12.50", true)

	w := env.guestAdd(t, product.ID, 2)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cookie := guestCookie(t, w)
	assert.False(t, cookie.HttpOnly)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)

	stored := cartcookie.Parse(cookie.Value)
	item, ok := stored.Find(product.ID.String())
	require.True(t, ok)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, item.PriceAtAdd.Equal(decimal.RequireFromString("12.50")))

	view := decodeEnvelope[domain.CartView](t, w)
	assert.True(t, view.Success)
	assert.Equal(t, domain.CartSourceCookie, view.Data.Source)
	assert.Equal(t, 2, view.Data.ItemCount)
	assert.True(t, view.Data.TotalAmount.Equal(decimal.RequireFromString("25")))
}

func TestCartHandler_GuestAddSameProductMerges(t *testing.T) {
	env := newCartTestEnv(cartcookie.Options{})
	product := env.catalog.add(10, "5.00", true)

	first := env.guestAdd(t, product.ID, 2)
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.guestAdd(t, product.ID, 3, guestCookie(t, first))
	require.Equal(t, http.StatusOK, second.Code)

	item, ok := cartcookie.Parse(guestCookie(t, second).Value).Find(product.ID.String())
	require.True(t, ok)
	assert.Equal(t, 5, item.Quantity)
}

func TestCartHandler_AddRejections(t *testing.T) {
	env := newCartTestEnv(cartcookie.Options{})
	limited := env.catalog.add(3, "1.00", true)
	inactive := env.catalog.add(10, "1.00", false)

	t.Run("insufficient stock", func(t *testing.T) {
		w := env.guestAdd(t, limited.ID, 4)

		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeEnvelope[any](t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, middleware.CodeInsufficientStock, resp.Error.Code)
		assert.Equal(t, limited.ID.String(), resp.Error.Details["productId"])
		assert.EqualValues(t, 3, resp.Error.Details["available"])
		assert.EqualValues(t, 4, resp.Error.Details["requested"])
		assert.Nil(t, findCookie(w, cartcookie.DefaultName))
	})

	t.Run("inactive product", func(t *testing.T) {
		w := env.guestAdd(t, inactive.ID, 1)

		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeEnvelope[any](t, w)
		assert.Equal(t, middleware.CodeProductUnavailable, resp.Error.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		w := env.guestAdd(t, uuid.New(), 1)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("quantity above line maximum", func(t *testing.T) {
		w := env.guestAdd(t, uuid.New(), math.MaxInt)

		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeEnvelope[any](t, w)
		assert.Equal(t, middleware.CodeValidationFailed, resp.Error.Code)
		assert.Nil(t, findCookie(w, cartcookie.DefaultName))
	})

	t.Run("invalid body", func(t *testing.T) {
		w := env.do(cartRequest{
			method: http.MethodPost,
			path:   "/api/cart/items",
			body:   map[string]interface{}{"productId": "not-a-uuid", "quantity": 0},
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeEnvelope[any](t, w)
		assert.Equal(t, middleware.CodeValidationFailed, resp.Error.Code)
	})
}

func TestCartHandler_GuestViewSkipsUnavailableProducts(t *testing.T) {
	env := newCartTestEnv(cartcookie.Options{})
	kept := env.catalog.add(10, "2.00", true)
	hidden := env.catalog.add(10, "3.00", true)

	w := env.guestAdd(t, kept.ID, 1)
	w = env.guestAdd(t, hidden.ID, 1, guestCookie(t, w))
	cookie := guestCookie(t, w)

	_, err := env.catalog.SetProductActive(t.Context(), hidden.ID, false)
	require.NoError(t, err)

	got := env.do(cartRequest{method: http.MethodGet, path: "/api/cart/", cookies: []*http.Cookie{cookie}})

	require.Equal(t, http.StatusOK, got.Code)
	view := decodeEnvelope[domain.CartView](t, got)
	require.Len(t, view.Data.Items, 1)
	assert.Equal(t, kept.ID, view.Data.Items[0].ProductID)
}

func TestCartHandler_GuestUpdateAndRemove(t *testing.T) {
	env := newCartTestEnv(cartcookie.Options{})
	product := env.catalog.add(10, "2.00", true)
	cookie := guestCookie(t, env.guestAdd(t, product.ID, 1))
	itemPath := "/api/cart/items/" + product.ID.String()

	t.Run("set quantity", func(t *testing.T) {
		w := env.do(cartRequest{method: http.MethodPut, path: itemPath, body: map[string]int{"quantity": 4}, cookies: []*http.Cookie{cookie}})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		item, ok := cartcookie.Parse(guestCookie(t, w).Value).Find(product.ID.String())
		require.True(t, ok)
		assert.Equal(t, 4, item.Quantity)
	})

	t.Run("quantity above stock", func(t *testing.T) {
		w := env.do(cartRequest{method: http.MethodPut, path: itemPath, body: map[string]int{"quantity": 11}, cookies: []*http.Cookie{cookie}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("zero removes the line", func(t *testing.T) {
		w := env.do(cartRequest{method: http.MethodPut, path: itemPath, body: map[string]int{"quantity": 0}, cookies: []*http.Cookie{cookie}})

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, cartcookie.Parse(guestCookie(t, w).Value).IsEmpty())
	})

	t.Run("absent line", func(t *testing.T) {
		other := "/api/cart/items/" + uuid.NewString()
		put := env.do(cartRequest{method: http.MethodPut, path: other, body: map[string]int{"quantity": 1}, cookies: []*http.Cookie{cookie}})
		del := env.do(cartRequest{method: http.MethodDelete, path: other, cookies: []*http.Cookie{cookie}})

		assert.Equal(t, http.StatusNotFound, put.Code)
		assert.Equal(t, http.StatusNotFound, del.Code)
	})

	t.Run("invalid product id", func(t *testing.T) {
		w := env.do(cartRequest{method: http.MethodDelete, path: "/api/cart/items/abc", cookies: []*http.Cookie{cookie}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCartHandler_GuestCookieTooLarge(t *testing.T) {
	env := newCartTestEnv(cartcookie.Options{MaxSize: 64})
	product := env.catalog.add(10, "2.00", true)

	w := env.guestAdd(t, product.ID, 1)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, findCookie(w, cartcookie.DefaultName))
}

func TestCartHandler_AccountCartUsesDatabase(t *testing.T) {
	env := newCartTestEnv(cartcookie.Options{})
	product := env.catalog.add(5, "9.99", true)
	userID := uuid.New()
	auth := bearer(t, userID, domain.RoleUser)

	w := env.do(cartRequest{
		method: http.MethodPost,
		path:   "/api/cart/items",
		body:   AddCartItemRequest{ProductID: product.ID.String(), Quantity: 2},
		auth:   auth,
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Nil(t, findCookie(w, cartcookie.DefaultName))
	assert.Equal(t, 2, env.carts.quantity(userID, product.ID))

	view := decodeEnvelope[domain.CartView](t, w)
	assert.Equal(t, domain.CartSourceDatabase, view.Data.Source)

	cleared := env.do(cartRequest{method: http.MethodDelete, path: "/api/cart/", auth: auth})
	require.Equal(t, http.StatusOK, cleared.Code)
	assert.Equal(t, 0, env.carts.quantity(userID, product.ID))
}

func TestCartHandler_Sync(t *testing.T) {
	t.Run("requires a signed-in user and keeps the cookie", func(t *testing.T) {
		env := newCartTestEnv(cartcookie.Options{})
		product := env.catalog.add(5, "1.00", true)
		cookie := guestCookie(t, env.guestAdd(t, product.ID, 1))

		w := env.do(cartRequest{method: http.MethodPost, path: "/api/cart/sync", cookies: []*http.Cookie{cookie}})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, findCookie(w, cartcookie.DefaultName))
	})

	t.Run("merges lines and expires the cookie", func(t *testing.T) {
		env := newCartTestEnv(cartcookie.Options{})
		plenty := env.catalog.add(10, "1.00", true)
		scarce := env.catalog.add(4, "2.00", true)
		userID := uuid.New()
		auth := bearer(t, userID, domain.RoleUser)

		// account already holds 3 of the scarce product
		pre := env.do(cartRequest{
			method: http.MethodPost,
			path:   "/api/cart/items",
			body:   AddCartItemRequest{ProductID: scarce.ID.String(), Quantity: 3},
			auth:   auth,
		})
		require.Equal(t, http.StatusCreated, pre.Code)

		w := env.guestAdd(t, plenty.ID, 3)
		cookie := guestCookie(t, env.guestAdd(t, scarce.ID, 2, guestCookie(t, w)))

		synced := env.do(cartRequest{method: http.MethodPost, path: "/api/cart/sync", auth: auth, cookies: []*http.Cookie{cookie}})

		require.Equal(t, http.StatusOK, synced.Code, synced.Body.String())
		result := decodeEnvelope[domain.SyncResult](t, synced)
		assert.Equal(t, 1, result.Data.SyncedItems)
		assert.Equal(t, 1, result.Data.SkippedItems)
		require.Len(t, result.Data.Errors, 1)
		assert.Equal(t, scarce.ID.String(), result.Data.Errors[0].ProductID)

		assert.Equal(t, 3, env.carts.quantity(userID, plenty.ID))
		assert.Equal(t, 3, env.carts.quantity(userID, scarce.ID))

		expired := findCookie(synced, cartcookie.DefaultName)
		require.NotNil(t, expired)
		assert.Equal(t, -1, expired.MaxAge)
	})

	t.Run("empty guest cart", func(t *testing.T) {
		env := newCartTestEnv(cartcookie.Options{})
		auth := bearer(t, uuid.New(), domain.RoleUser)

		w := env.do(cartRequest{method: http.MethodPost, path: "/api/cart/sync", auth: auth})

		require.Equal(t, http.StatusOK, w.Code)
		result := decodeEnvelope[domain.SyncResult](t, w)
		assert.Zero(t, result.Data.SyncedItems)
		assert.Zero(t, result.Data.SkippedItems)
	})
}
