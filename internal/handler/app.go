package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/ternary-app/link-server/internal/errors"
	"github.com/ternary-app/link-server/internal/middleware"
	"github.com/ternary-app/link-server/internal/repository"
)

// AppHandler serves endpoints for already-paired devices, authenticated with
// the app bearer token minted by the linking flow.
type AppHandler struct {
	userRepo       repository.UserRepository
	authMiddleware *middleware.AuthMiddleware
}

func NewAppHandler(userRepo repository.UserRepository, authMiddleware *middleware.AuthMiddleware) *AppHandler {
	return &AppHandler{
		userRepo:       userRepo,
		authMiddleware: authMiddleware,
	}
}

func (h *AppHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.authMiddleware.Handler)
	r.Get("/me", h.Me)

	return r
}

type meResponse struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
	Scope    string `json:"scope"`
	Plan     string `json:"plan"`
	Email    string `json:"email"`
}

// GET /app/me
func (h *AppHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeError(w, apperrors.Unauthorized())
		return
	}

	user, err := h.userRepo.FindByID(r.Context(), identity.UserID)
	if err != nil {
		log.Error().Err(err).Str("userId", identity.UserID).Msg("failed to load user")
		writeError(w, apperrors.Database(err))
		return
	}

	resp := meResponse{
		UserID:   identity.UserID,
		DeviceID: identity.DeviceID,
		Scope:    identity.Scope,
	}
	if user != nil {
		resp.Plan = user.Plan
		resp.Email = user.Email
	}

	writeJSON(w, http.StatusOK, resp)
}
