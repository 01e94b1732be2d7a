package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/plasmalab/simtrack/internal/errors"
	"github.com/plasmalab/simtrack/internal/observability"
)

// ErrorResponse is the envelope handlers and middleware emit on failure.
type ErrorResponse = apperrors.HTTPErrorResponse

// Recovery converts handler panics into a 500 JSON error instead of tearing
// down the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestID := GetRequestID(r.Context())
				observability.CLILogger.Error("handler panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID))
				apperrors.WriteHTTPError(w, http.StatusInternalServerError,
					apperrors.CodeInternal, fmt.Sprintf("panic: %v", rec), requestID)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
