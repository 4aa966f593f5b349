package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/ternary-app/link-server/internal/errors"
	"github.com/ternary-app/link-server/internal/model"
	"github.com/ternary-app/link-server/internal/repository"
	"github.com/ternary-app/link-server/internal/util"
)

// TokenService authenticates device bearer tokens against the app_tokens
// table. It never caches: revocation must take effect on the very next
// request, so every call re-reads storage.
type TokenService struct {
	tokenRepo  repository.AppTokenRepository
	deviceRepo repository.DeviceRepository
	hasher     *util.TokenHasher
}

func NewTokenService(
	tokenRepo repository.AppTokenRepository,
	deviceRepo repository.DeviceRepository,
	hasher *util.TokenHasher,
) *TokenService {
	return &TokenService{
		tokenRepo:  tokenRepo,
		deviceRepo: deviceRepo,
		hasher:     hasher,
	}
}

// Authenticate resolves a raw bearer token to its identity. Unknown, revoked
// and expired tokens all fail the same way; the distinction is logged
// server-side only.
func (s *TokenService) Authenticate(ctx context.Context, raw string) (*model.Identity, error) {
	if raw == "" || !strings.HasPrefix(raw, util.RawTokenPrefix) {
		return nil, apperrors.Unauthorized()
	}

	token, err := s.tokenRepo.FindByTokenHash(ctx, s.hasher.Hash(raw))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if token == nil {
		log.Warn().Msg("authenticate: unknown token hash")
		return nil, apperrors.Unauthorized()
	}
	if token.RevokedAt != nil {
		log.Warn().Str("deviceId", token.DeviceID).Msg("authenticate: revoked token presented")
		return nil, apperrors.Unauthorized()
	}
	if token.ExpiresAt != nil && time.Now().After(*token.ExpiresAt) {
		log.Warn().Str("deviceId", token.DeviceID).Msg("authenticate: expired token presented")
		return nil, apperrors.Unauthorized()
	}

	// Advisory bookkeeping; a failure here must not fail the request.
	now := time.Now()
	if err := s.tokenRepo.TouchLastUsed(ctx, token.ID, now); err != nil {
		log.Warn().Err(err).Msg("authenticate: touch last_used failed")
	}
	if err := s.deviceRepo.TouchLastSeen(ctx, token.DeviceID, now); err != nil {
		log.Warn().Err(err).Msg("authenticate: touch last_seen failed")
	}

	return &model.Identity{
		UserID:   token.UserID,
		DeviceID: token.DeviceID,
		Scope:    token.Scope,
	}, nil
}
