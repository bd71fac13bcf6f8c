// Package auth guards operator routes with bearer-token authentication.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// JWTValidator validates an operator access token.
type JWTValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims is the validated identity the middleware hands downstream.
type Claims struct {
	OperatorID string
	Role       string
}

// RequireOperator rejects requests without a valid bearer token and puts
// the operator identity on the context.
func RequireOperator(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx = requestcontext.WithOperatorID(ctx, claims.OperatorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
