package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	ctxlog "storefront/internal/logger"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddleware_AttachesRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	handler := middleware.RequestID(LoggingMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxlog.FromContext(r.Context(), zap.NewNop()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	entries := logs.All()
	assert.Len(t, entries, 3)
	for _, e := range entries {
		assert.NotEmpty(t, e.ContextMap()["request_id"])
	}
	assert.Equal(t, "inside handler", entries[1].Message)
	assert.EqualValues(t, http.StatusTeapot, entries[2].ContextMap()["status"])
}
