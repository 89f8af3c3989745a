package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/GuardianChain/launch_layer/internal/errors"
	internalhttputil "github.com/GuardianChain/launch_layer/internal/httputil"
	"github.com/GuardianChain/launch_layer/internal/logging"
)

// RecoveryMiddleware converts handler panics into 500 responses.
type RecoveryMiddleware struct {
	logger *logging.Logger
}

// NewRecoveryMiddleware creates a new recovery middleware.
func NewRecoveryMiddleware(logger *logging.Logger) *RecoveryMiddleware {
	return &RecoveryMiddleware{logger: logger}
}

// Handler returns the recovery middleware handler.
func (m *RecoveryMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil || rec == http.ErrAbortHandler {
				if rec != nil {
					panic(rec)
				}
				return
			}

			m.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
				"panic":  fmt.Sprint(rec),
				"path":   r.URL.Path,
				"method": r.Method,
				"stack":  string(debug.Stack()),
			}).Error("handler panic")

			serviceErr := errors.Internal("Internal server error", nil)
			internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, nil)
		}()

		next.ServeHTTP(w, r)
	})
}
