package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/escuela-posgrado/sistema-academico/internal/api"
	"github.com/escuela-posgrado/sistema-academico/internal/types"
)

// Typed context keys. The resolved identity is produced once here and read
// by handlers through the helpers below; there is no ambient security
// context anywhere else.
type contextKey string

const UsernameKey contextKey = "username"
const UserRoleKey contextKey = "userRole"

// Authenticate validates the bearer token and threads username and role
// into the request context. Missing, malformed or expired tokens are
// rejected with 401.
func Authenticate(logger *slog.Logger, tokens *TokenIssuer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.WarnContext(ctx, "Missing Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				l.WarnContext(ctx, "Invalid Authorization header format")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}

			claims, err := tokens.Validate(headerParts[1])
			if err != nil {
				l.WarnContext(ctx, "Token validation failed", slog.Any("error", err))
				errMsg := "Invalid token"
				if errors.Is(err, ErrTokenExpired) {
					errMsg = "Token has expired"
				}
				api.ErrorResponse(w, r, http.StatusUnauthorized, errMsg)
				return
			}

			ctx = context.WithValue(ctx, UsernameKey, claims.Username)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Rol)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route group on a per-endpoint role allow-list.
// Runs AFTER the Authenticate middleware.
func RequireRole(logger *slog.Logger, allowed ...types.Rol) func(next http.Handler) http.Handler {
	roleSet := make(map[types.Rol]struct{}, len(allowed))
	for _, rol := range allowed {
		roleSet[rol] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			rol, ok := GetRoleFromContext(ctx)
			if !ok {
				logger.ErrorContext(ctx, "Role claim missing from context")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, permitted := roleSet[rol]; !permitted {
				logger.WarnContext(ctx, "Role check failed",
					slog.String("rol", string(rol)),
					slog.String("path", r.URL.Path))
				api.ErrorResponse(w, r, http.StatusForbidden, "Acceso denegado")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUsernameFromContext returns the identity resolved by Authenticate.
func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// GetRoleFromContext returns the role resolved by Authenticate.
func GetRoleFromContext(ctx context.Context) (types.Rol, bool) {
	rol, ok := ctx.Value(UserRoleKey).(types.Rol)
	return rol, ok
}
