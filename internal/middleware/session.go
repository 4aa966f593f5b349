package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ternary-app/link-server/internal/audit"
	apperrors "github.com/ternary-app/link-server/internal/errors"
	"github.com/ternary-app/link-server/internal/model"
	"github.com/ternary-app/link-server/internal/repository"
	"github.com/ternary-app/link-server/internal/util"
)

const UserContextKey contextKey = "user"

// GetUser returns the human approver attached by SessionMiddleware, or nil
// outside an authenticated request.
func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserContextKey).(*model.User); ok {
		return user
	}
	return nil
}

// SessionMiddleware verifies the human browser session on approve, confirm
// and device-management endpoints. Sessions are minted by the external
// identity provider; here they are only looked up by hash and expiry-checked.
type SessionMiddleware struct {
	userRepo repository.UserRepository
	hasher   *util.TokenHasher
}

func NewSessionMiddleware(userRepo repository.UserRepository, hasher *util.TokenHasher) *SessionMiddleware {
	return &SessionMiddleware{userRepo: userRepo, hasher: hasher}
}

func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthorized())
			return
		}

		user, err := m.userRepo.FindBySessionTokenHash(r.Context(), m.hasher.Hash(token))
		if err != nil {
			log.Error().Err(err).Msg("session middleware: database error")
			writeError(w, apperrors.Database(err))
			return
		}
		if user == nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			writeError(w, apperrors.Unauthorized())
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
