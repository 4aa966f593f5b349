package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/ternary-app/link-server/internal/config"
	"github.com/ternary-app/link-server/internal/database"
	apperrors "github.com/ternary-app/link-server/internal/errors"
	"github.com/ternary-app/link-server/internal/model"
	"github.com/ternary-app/link-server/internal/repository"
	"github.com/ternary-app/link-server/internal/util"
)

// TxRunner runs a function inside a database transaction. *database.DB
// satisfies it; tests substitute a runner that invokes fn directly.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

var _ TxRunner = (*database.DB)(nil)

type InitiateParams struct {
	DeviceName *string
	Platform   *string
	AppVersion *string
}

type InitiateResult struct {
	Code         string    `json:"code"`
	PollingToken string    `json:"polling_token"`
	VerifyURL    string    `json:"verify_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type ApproveParams struct {
	State      string
	ReturnURI  string
	DeviceName *string
	Platform   *string
	AppVersion *string
}

type PollResult struct {
	Status model.LinkStatus `json:"status"`
	// Token is present on exactly one poll per link: the first one after
	// confirmation.
	Token    *string `json:"token,omitempty"`
	DeviceID *string `json:"device_id,omitempty"`
}

// LinkingService orchestrates the pairing protocol: initiate, the two
// approval variants (by typed code, by redirect state), and poll.
type LinkingService struct {
	tx         TxRunner
	linkRepo   repository.DeviceLinkRepository
	deviceRepo repository.DeviceRepository
	tokenRepo  repository.AppTokenRepository
	hasher     *util.TokenHasher
	cfg        *config.Config
}

func NewLinkingService(
	tx TxRunner,
	linkRepo repository.DeviceLinkRepository,
	deviceRepo repository.DeviceRepository,
	tokenRepo repository.AppTokenRepository,
	hasher *util.TokenHasher,
	cfg *config.Config,
) *LinkingService {
	return &LinkingService{
		tx:         tx,
		linkRepo:   linkRepo,
		deviceRepo: deviceRepo,
		tokenRepo:  tokenRepo,
		hasher:     hasher,
		cfg:        cfg,
	}
}

// Initiate creates a pending link request for an unauthenticated device and
// hands back the short code for the human plus the polling token for the
// device.
func (s *LinkingService) Initiate(ctx context.Context, params InitiateParams) (*InitiateResult, error) {
	code, err := util.NewShortCode(util.ShortCodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate short code: %w", err)
	}
	pollingToken, err := util.NewPollingToken()
	if err != nil {
		return nil, fmt.Errorf("generate polling token: %w", err)
	}

	link, err := s.linkRepo.Create(ctx, model.CreateDeviceLinkParams{
		Code:         code,
		PollingToken: pollingToken,
		DeviceName:   params.DeviceName,
		Platform:     params.Platform,
		AppVersion:   params.AppVersion,
		ExpiresAt:    time.Now().Add(s.cfg.LinkTTL()),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("code", code).
		Time("expiresAt", link.ExpiresAt).
		Msg("link request created")

	return &InitiateResult{
		Code:         code,
		PollingToken: pollingToken,
		VerifyURL:    s.cfg.VerifyURL(code),
		ExpiresAt:    link.ExpiresAt,
	}, nil
}

// Confirm is the code variant of approval. The raw token is parked on the
// link row for the device to collect by polling; it is never returned over
// the human's session. Expiry is checked against the clock here, not left to
// the sweep.
func (s *LinkingService) Confirm(ctx context.Context, user *model.User, code string) error {
	normalized := util.NormalizeShortCode(code)

	link, err := s.linkRepo.FindByCode(ctx, normalized)
	if err != nil {
		return apperrors.Database(err)
	}
	if link == nil {
		return apperrors.NotFound("Link code")
	}
	if link.Expired(time.Now()) {
		return apperrors.LinkExpired()
	}
	if link.Status != model.LinkStatusPending {
		return apperrors.LinkNotPending()
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, raw, mintErr := s.mint(ctx, tx, user.ID, link.DeviceName, link.Platform, link.AppVersion)
		if mintErr != nil {
			return mintErr
		}

		ok, confirmErr := s.linkRepo.WithTx(tx).Confirm(ctx, normalized, user.ID, raw, time.Now())
		if confirmErr != nil {
			return apperrors.Database(confirmErr)
		}
		if !ok {
			// A concurrent confirm won; roll back our device and token.
			return apperrors.LinkNotPending()
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("code", normalized).
		Str("userId", user.ID).
		Msg("link confirmed")

	return nil
}

// Approve is the direct variant: the approving surface already holds an
// opaque correlation state, so the raw token rides back on the redirect URL
// instead of the polling channel.
func (s *LinkingService) Approve(ctx context.Context, user *model.User, params ApproveParams) (string, error) {
	callback, err := url.Parse(params.ReturnURI)
	if err != nil {
		return "", apperrors.InvalidInput("return_uri", "not a valid URI")
	}

	var deviceID, raw string
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		var mintErr error
		deviceID, raw, mintErr = s.mint(ctx, tx, user.ID, params.DeviceName, params.Platform, params.AppVersion)
		return mintErr
	})
	if err != nil {
		return "", err
	}

	query := callback.Query()
	query.Set("status", "ok")
	query.Set("token", raw)
	query.Set("device_id", deviceID)
	query.Set("state", params.State)
	if params.Platform != nil {
		query.Set("platform", *params.Platform)
	}
	if params.AppVersion != nil {
		query.Set("app_version", *params.AppVersion)
	}
	callback.RawQuery = query.Encode()

	log.Info().
		Str("userId", user.ID).
		Str("deviceId", deviceID).
		Msg("link approved directly")

	return callback.String(), nil
}

// Poll resolves the state of a link request for the device holding the
// polling token. The token handoff is an atomic claim: one poll gets the
// token, every other poll of a confirmed link sees status only.
func (s *LinkingService) Poll(ctx context.Context, pollingToken string) (*PollResult, error) {
	link, err := s.linkRepo.FindByPollingToken(ctx, pollingToken)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if link == nil {
		return nil, apperrors.NotFound("Link request")
	}

	if link.Status != model.LinkStatusConfirmed {
		status := link.Status
		if link.Expired(time.Now()) {
			status = model.LinkStatusExpired
		}
		return &PollResult{Status: status}, nil
	}

	token, err := s.linkRepo.ClaimToken(ctx, pollingToken)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if token == nil {
		// Already consumed, by this device or a concurrent poll.
		return &PollResult{Status: model.LinkStatusConfirmed}, nil
	}

	result := &PollResult{Status: model.LinkStatusConfirmed, Token: token}

	// Best-effort device id hint; the token itself is the credential.
	if link.UserID != nil {
		if latest, hintErr := s.tokenRepo.FindLatestByUserID(ctx, *link.UserID); hintErr == nil && latest != nil {
			result.DeviceID = &latest.DeviceID
		}
	}

	log.Info().Str("code", link.Code).Msg("link token delivered")

	return result, nil
}

// mint creates the device row and its app token inside the caller's
// transaction and returns the device id with the raw token. The raw value
// leaves this function exactly once; only the hash is stored.
func (s *LinkingService) mint(ctx context.Context, tx *sqlx.Tx, userID string, name, platform, appVersion *string) (string, string, error) {
	raw, err := util.NewRawToken()
	if err != nil {
		return "", "", fmt.Errorf("generate raw token: %w", err)
	}

	device, err := s.deviceRepo.WithTx(tx).Create(ctx, model.CreateDeviceParams{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       name,
		Platform:   platform,
		AppVersion: appVersion,
	})
	if err != nil {
		return "", "", apperrors.Database(err)
	}

	_, err = s.tokenRepo.WithTx(tx).Create(ctx, model.CreateAppTokenParams{
		UserID:    userID,
		DeviceID:  device.ID,
		TokenHash: s.hasher.Hash(raw),
		Scope:     config.DefaultTokenScope,
	})
	if err != nil {
		return "", "", apperrors.Database(err)
	}

	return device.ID, raw, nil
}
