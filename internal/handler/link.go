package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ternary-app/link-server/internal/audit"
	apperrors "github.com/ternary-app/link-server/internal/errors"
	"github.com/ternary-app/link-server/internal/middleware"
	"github.com/ternary-app/link-server/internal/service"
)

// LinkHandler exposes the pairing protocol. Initiate and poll are called by
// the pairing device (no auth beyond token possession); approve and confirm
// require the human's session and are mounted behind SessionMiddleware.
type LinkHandler struct {
	linkingService    *service.LinkingService
	sessionMiddleware *middleware.SessionMiddleware
	initLimiter       func(http.Handler) http.Handler
	pollLimiter       func(http.Handler) http.Handler
}

func NewLinkHandler(
	linkingService *service.LinkingService,
	sessionMiddleware *middleware.SessionMiddleware,
	initLimiter, pollLimiter func(http.Handler) http.Handler,
) *LinkHandler {
	return &LinkHandler{
		linkingService:    linkingService,
		sessionMiddleware: sessionMiddleware,
		initLimiter:       initLimiter,
		pollLimiter:       pollLimiter,
	}
}

func (h *LinkHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(h.initLimiter)
		r.Post("/init", h.Initiate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.pollLimiter)
		r.Post("/status", h.Poll)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.sessionMiddleware.Handler)
		r.Post("/approve", h.Approve)
		r.Post("/confirm", h.Confirm)
	})

	return r
}

type initiateRequest struct {
	DeviceName string `json:"device_name"`
	Platform   string `json:"platform"`
	AppVersion string `json:"app_version"`
}

// POST /link/init
func (h *LinkHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	result, err := h.linkingService.Initiate(r.Context(), service.InitiateParams{
		DeviceName: optional(req.DeviceName),
		Platform:   optional(req.Platform),
		AppVersion: optional(req.AppVersion),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initiate link")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventLinkInitiated,
		Details: map[string]interface{}{"code": result.Code},
	})

	writeJSON(w, http.StatusOK, result)
}

type approveRequest struct {
	State      string `json:"state"`
	ReturnURI  string `json:"return_uri"`
	DeviceName string `json:"device_name"`
	Platform   string `json:"platform"`
	AppVersion string `json:"app_version"`
}

// POST /link/approve
func (h *LinkHandler) Approve(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized())
		return
	}

	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.State == "" {
		writeError(w, apperrors.MissingRequired("state"))
		return
	}
	if req.ReturnURI == "" {
		writeError(w, apperrors.MissingRequired("return_uri"))
		return
	}

	redirect, err := h.linkingService.Approve(r.Context(), user, service.ApproveParams{
		State:      req.State,
		ReturnURI:  req.ReturnURI,
		DeviceName: optional(req.DeviceName),
		Platform:   optional(req.Platform),
		AppVersion: optional(req.AppVersion),
	})
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to approve link")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventLinkApproved,
		UserID: user.ID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"redirect": redirect})
}

type confirmRequest struct {
	Code string `json:"code"`
}

// POST /link/confirm
func (h *LinkHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized())
		return
	}

	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.Code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}

	if err := h.linkingService.Confirm(r.Context(), user, req.Code); err != nil {
		if code := apperrors.GetCode(err); code == apperrors.ErrCodeDatabase || code == apperrors.ErrCodeInternal {
			log.Error().Err(err).Str("userId", user.ID).Msg("failed to confirm link")
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventLinkConfirmed,
		UserID:  user.ID,
		Details: map[string]interface{}{"code": req.Code},
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type pollRequest struct {
	PollingToken string `json:"polling_token"`
}

// POST /link/status
func (h *LinkHandler) Poll(w http.ResponseWriter, r *http.Request) {
	var req pollRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.PollingToken == "" {
		writeError(w, apperrors.MissingRequired("polling_token"))
		return
	}

	result, err := h.linkingService.Poll(r.Context(), req.PollingToken)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeDatabase {
			log.Error().Err(err).Msg("failed to poll link status")
		}
		writeError(w, err)
		return
	}

	if result.Token != nil {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLinkDelivered})
	}

	writeJSON(w, http.StatusOK, result)
}
