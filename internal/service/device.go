package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/ternary-app/link-server/internal/errors"
	"github.com/ternary-app/link-server/internal/model"
	"github.com/ternary-app/link-server/internal/repository"
)

// DeviceService covers the dashboard side of the token lifecycle: listing a
// user's paired devices and revoking them.
type DeviceService struct {
	deviceRepo repository.DeviceRepository
	tokenRepo  repository.AppTokenRepository
}

func NewDeviceService(
	deviceRepo repository.DeviceRepository,
	tokenRepo repository.AppTokenRepository,
) *DeviceService {
	return &DeviceService{
		deviceRepo: deviceRepo,
		tokenRepo:  tokenRepo,
	}
}

// Revoke invalidates every live token of one device. Revocation is permanent;
// re-pairing the device mints a fresh token row instead. Revoking a device
// with no live tokens is a no-op, not an error.
func (s *DeviceService) Revoke(ctx context.Context, userID, deviceID string) error {
	revoked, err := s.tokenRepo.RevokeByDevice(ctx, userID, deviceID, time.Now())
	if err != nil {
		return apperrors.Database(err)
	}

	log.Info().
		Str("userId", userID).
		Str("deviceId", deviceID).
		Int64("tokensRevoked", revoked).
		Msg("device revoked")

	return nil
}

func (s *DeviceService) List(ctx context.Context, userID string) ([]model.DeviceWithToken, error) {
	devices, err := s.deviceRepo.ListWithTokenByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if devices == nil {
		devices = []model.DeviceWithToken{}
	}
	return devices, nil
}
