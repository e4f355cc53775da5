package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// InternalErrorMessage is the only text a client sees for a 500
const InternalErrorMessage = "Došlo je do greške na serveru. Pokušajte ponovo kasnije."

// Error codes used besides the HTTP status text
const (
	CodeValidationFailed   = "ValidationFailed"
	CodeInsufficientStock  = "InsufficientStock"
	CodeProductUnavailable = "ProductUnavailable"
)

// ErrorResponse is the failure envelope
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// SuccessResponse is the success envelope
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondWithError sends a failure envelope whose code is the status text
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, message, nil)
}

// RespondWithErrorDetails sends a failure envelope with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	RespondWithErrorCode(w, statusCode, http.StatusText(statusCode), message, details)
}

// RespondWithErrorCode sends a failure envelope with an explicit error code
func RespondWithErrorCode(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	RespondWithJSON(w, statusCode, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// RespondWithInternalError sends the generic 500. The cause is only exposed
// when dev is set.
func RespondWithInternalError(w http.ResponseWriter, err error, dev bool) {
	var details map[string]interface{}
	if dev && err != nil {
		details = map[string]interface{}{"error": err.Error()}
	}
	RespondWithErrorDetails(w, http.StatusInternalServerError, InternalErrorMessage, details)
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := map[string]interface{}{
		"validation_errors": errors,
	}
	RespondWithErrorCode(w, http.StatusBadRequest, CodeValidationFailed, "validation failed", details)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger, dev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := debug.Stack()
				logger.Error("Panic recovered",
					zap.Any("error", rec),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.ByteString("stack", stack),
				)

				var details map[string]interface{}
				if dev {
					details = map[string]interface{}{
						"error": fmt.Sprint(rec),
						"stack": string(stack),
					}
				}
				RespondWithErrorDetails(w, http.StatusInternalServerError, InternalErrorMessage, details)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON writes payload as is, without an envelope
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// RespondWithSuccess wraps data in the success envelope
func RespondWithSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	RespondWithJSON(w, statusCode, SuccessResponse{Success: true, Data: data})
}
