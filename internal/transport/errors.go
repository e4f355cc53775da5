package transport

import (
	"errors"
	"net/http"

	"storefront/internal/cartcookie"
	"storefront/internal/domain"
	ctxlog "storefront/internal/logger"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"go.uber.org/zap"
)

// respondWithServiceError maps a service error onto the HTTP response.
// Anything unrecognised is logged and answered with the generic 500.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, dev bool, err error) {
	var stockErr *domain.InsufficientStockError

	switch {
	case errors.As(err, &stockErr):
		middleware.RespondWithErrorCode(w, http.StatusBadRequest, middleware.CodeInsufficientStock, "insufficient stock", map[string]interface{}{
			"productId": stockErr.ProductID.String(),
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	case errors.Is(err, domain.ErrProductUnavailable):
		middleware.RespondWithErrorCode(w, http.StatusBadRequest, middleware.CodeProductUnavailable, domain.ErrProductUnavailable.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		middleware.RespondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrOrderForbidden),
		errors.Is(err, domain.ErrForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrCartEmpty),
		errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, cartcookie.ErrCookieTooLarge):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, repository.ErrUserAlreadyExists),
		errors.Is(err, repository.ErrCategoryAlreadyExists),
		errors.Is(err, repository.ErrCategoryInUse):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		ctxlog.FromContext(r.Context(), logger).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		middleware.RespondWithInternalError(w, err, dev)
	}
}
