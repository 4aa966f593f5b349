package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ternary-app/link-server/internal/audit"
	apperrors "github.com/ternary-app/link-server/internal/errors"
	"github.com/ternary-app/link-server/internal/model"
	"github.com/ternary-app/link-server/internal/service"
)

type contextKey string

const IdentityContextKey contextKey = "identity"

// GetIdentity returns the device identity attached by AuthMiddleware, or nil
// outside an authenticated request.
func GetIdentity(ctx context.Context) *model.Identity {
	if identity, ok := ctx.Value(IdentityContextKey).(*model.Identity); ok {
		return identity
	}
	return nil
}

// AuthMiddleware guards device-scoped endpoints with app bearer tokens.
type AuthMiddleware struct {
	tokenService *service.TokenService
}

func NewAuthMiddleware(tokenService *service.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenService: tokenService}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, apperrors.Unauthorized())
			return
		}

		identity, err := m.tokenService.Authenticate(r.Context(), raw)
		if err != nil {
			if apperrors.GetCode(err) == apperrors.ErrCodeUnauthorized {
				audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			}
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
