package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ternary-app/link-server/internal/audit"
	apperrors "github.com/ternary-app/link-server/internal/errors"
	"github.com/ternary-app/link-server/internal/middleware"
	"github.com/ternary-app/link-server/internal/service"
	"github.com/ternary-app/link-server/internal/util"
)

// DeviceHandler serves the dashboard's device management: listing paired
// devices and revoking their tokens. All routes require the human session.
type DeviceHandler struct {
	deviceService     *service.DeviceService
	sessionMiddleware *middleware.SessionMiddleware
}

func NewDeviceHandler(deviceService *service.DeviceService, sessionMiddleware *middleware.SessionMiddleware) *DeviceHandler {
	return &DeviceHandler{
		deviceService:     deviceService,
		sessionMiddleware: sessionMiddleware,
	}
}

func (h *DeviceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.sessionMiddleware.Handler)
	r.Get("/list", h.List)
	r.Post("/revoke", h.Revoke)

	return r
}

// GET /devices/list
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized())
		return
	}

	devices, err := h.deviceService.List(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to list devices")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

type revokeRequest struct {
	DeviceID string `json:"device_id"`
}

// POST /devices/revoke
func (h *DeviceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized())
		return
	}

	var req revokeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.DeviceID == "" {
		writeError(w, apperrors.MissingRequired("device_id"))
		return
	}
	if !util.IsValidUUID(req.DeviceID) {
		writeError(w, apperrors.InvalidInput("device_id", "not a valid id"))
		return
	}

	if err := h.deviceService.Revoke(r.Context(), user.ID, req.DeviceID); err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to revoke device")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventTokenRevoked,
		UserID:   user.ID,
		DeviceID: req.DeviceID,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
