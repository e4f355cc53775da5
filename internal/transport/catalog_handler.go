package transport

import (
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest is the body for creating or replacing a product
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  string          `json:"category_id" validate:"required,uuid"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
	Stock       int             `json:"stock" validate:"gte=0"`
	IsActive    *bool           `json:"is_active"`
}

// SetActiveRequest toggles product visibility
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// CategoryRequest is the body for creating a category
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Items    []*domain.Product `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// CatalogHandler serves products and categories
type CatalogHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
	dev     bool
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog service.CatalogService, logger *zap.Logger, dev bool) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		logger:  logger,
		dev:     dev,
	}
}

// RegisterRoutes registers catalog routes. Listing is public and shows
// active products only; staff see everything and manage the catalog.
func (h *CatalogHandler) RegisterRoutes(r chi.Router, optionalAuth, authMiddleware func(http.Handler) http.Handler) {
	staff := middleware.RequireRole([]string{domain.RoleAdmin, domain.RoleModerator}, h.logger)
	admin := middleware.RequireAdmin(h.logger)

	r.Route("/api/products", func(r chi.Router) {
		r.With(optionalAuth).Get("/", h.ListProducts)
		r.With(optionalAuth).Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.With(admin).Post("/", h.CreateProduct)
			r.With(staff).Put("/{id}", h.UpdateProduct)
			r.With(staff).Patch("/{id}/active", h.SetProductActive)
			r.With(admin).Delete("/{id}", h.DeleteProduct)
		})
	})

	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, admin)
			r.Post("/", h.CreateCategory)
			r.Delete("/{id}", h.DeleteCategory)
		})
	})
}

func isStaff(r *http.Request) bool {
	role, ok := middleware.GetUserRole(r.Context())
	return ok && (role == domain.RoleAdmin || role == domain.RoleModerator)
}

// ListProducts handles GET /api/products. q switches to a text search.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	page, pageSize = repository.NormalizePage(page, pageSize)
	activeOnly := !isStaff(r)

	var (
		products []*domain.Product
		total    int
		err      error
	)

	if q := strings.TrimSpace(query.Get("q")); q != "" {
		products, total, err = h.catalog.SearchProducts(r.Context(), q, activeOnly, page, pageSize)
	} else {
		filter := repository.ProductFilter{
			ActiveOnly: activeOnly,
			Page:       page,
			PageSize:   pageSize,
			SortBy:     query.Get("sort_by"),
			SortOrder:  repository.SortOrder(strings.ToUpper(query.Get("sort_order"))),
		}
		if raw := query.Get("category"); raw != "" {
			categoryID, perr := uuid.Parse(raw)
			if perr != nil {
				middleware.RespondWithError(w, http.StatusBadRequest, "invalid category ID")
				return
			}
			filter.CategoryID = &categoryID
		}
		products, total, err = h.catalog.ListProducts(r.Context(), filter)
	}
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, ProductPage{
		Items:    products,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetProduct handles GET /api/products/{id}. Inactive products are hidden
// from customers.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.LookupProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}
	if !product.IsActive && !isStaff(r) {
		respondWithServiceError(w, r, h.logger, h.dev, domain.ErrProductNotFound)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, product)
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithSuccess(w, http.StatusCreated, product)
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	input, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), id, input)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, product)
}

func (h *CatalogHandler) SetProductActive(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req SetActiveRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondToDecodeError(w, err)
		return
	}

	product, err := h.catalog.SetProductActive(r.Context(), id, *req.IsActive)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, product)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, categories)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondToDecodeError(w, err)
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusCreated, category)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (service.ProductInput, bool) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondToDecodeError(w, err)
		return service.ProductInput{}, false
	}
	if !req.Price.IsPositive() {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "Price", Message: "Value must be greater than 0"},
		})
		return service.ProductInput{}, false
	}

	return service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price.Round(2),
		CategoryID:  uuid.MustParse(req.CategoryID),
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
		IsActive:    req.IsActive,
	}, true
}

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid ID")
		return uuid.Nil, false
	}
	return id, true
}
