package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ternary-app/link-server/internal/errors"
	"github.com/ternary-app/link-server/internal/model"
	"github.com/ternary-app/link-server/internal/util"
)

func liveToken() *model.AppToken {
	return &model.AppToken{
		ID:       "token-1",
		UserID:   "user-1",
		DeviceID: "device-1",
		Scope:    "app:read usage:write",
	}
}

func TestAuthenticate(t *testing.T) {
	hasher := util.NewTokenHasher("test-salt")
	raw := "ternary_app_" + "abcdefghijklmnopqrstuvwxyz0123456789"

	t.Run("resolves a live token to its identity", func(t *testing.T) {
		var lookedUpHash string
		touchedToken := false
		touchedDevice := false
		tokens := &mockTokenRepo{
			findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.AppToken, error) {
				lookedUpHash = tokenHash
				return liveToken(), nil
			},
			touchLastUsedFunc: func(ctx context.Context, id string, usedAt time.Time) error {
				touchedToken = true
				return nil
			},
		}
		devices := &mockDeviceRepo{
			touchLastSeenFunc: func(ctx context.Context, id string, seenAt time.Time) error {
				touchedDevice = true
				assert.Equal(t, "device-1", id)
				return nil
			},
		}
		svc := NewTokenService(tokens, devices, hasher)

		identity, err := svc.Authenticate(context.Background(), raw)
		require.NoError(t, err)

		assert.Equal(t, "user-1", identity.UserID)
		assert.Equal(t, "device-1", identity.DeviceID)
		assert.Equal(t, "app:read usage:write", identity.Scope)
		assert.Equal(t, hasher.Hash(raw), lookedUpHash)
		assert.True(t, touchedToken)
		assert.True(t, touchedDevice)
	})

	t.Run("rejects tokens without the expected prefix before touching storage", func(t *testing.T) {
		tokens := &mockTokenRepo{
			findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.AppToken, error) {
				t.Fatal("storage must not be consulted for malformed tokens")
				return nil, nil
			},
		}
		svc := NewTokenService(tokens, &mockDeviceRepo{}, hasher)

		_, err := svc.Authenticate(context.Background(), "sk-something-else")
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))

		_, err = svc.Authenticate(context.Background(), "")
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
	})

	t.Run("unknown, revoked and expired tokens fail identically", func(t *testing.T) {
		revokedAt := time.Now().Add(-time.Hour)
		expiredAt := time.Now().Add(-time.Minute)

		cases := []struct {
			name  string
			token *model.AppToken
		}{
			{"unknown", nil},
			{"revoked", func() *model.AppToken {
				tok := liveToken()
				tok.RevokedAt = &revokedAt
				return tok
			}()},
			{"expired", func() *model.AppToken {
				tok := liveToken()
				tok.ExpiresAt = &expiredAt
				return tok
			}()},
		}

		var messages []string
		for _, tc := range cases {
			tokens := &mockTokenRepo{
				findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.AppToken, error) {
					return tc.token, nil
				},
			}
			svc := NewTokenService(tokens, &mockDeviceRepo{}, hasher)

			_, err := svc.Authenticate(context.Background(), raw)
			require.Error(t, err, tc.name)
			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok, tc.name)
			assert.Equal(t, apperrors.ErrCodeUnauthorized, appErr.Code, tc.name)
			messages = append(messages, appErr.Message)
		}

		// Same message for every failure mode: nothing for a caller to probe.
		assert.Equal(t, messages[0], messages[1])
		assert.Equal(t, messages[1], messages[2])
	})

	t.Run("bookkeeping failure does not fail the request", func(t *testing.T) {
		tokens := &mockTokenRepo{
			findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.AppToken, error) {
				return liveToken(), nil
			},
			touchLastUsedFunc: func(ctx context.Context, id string, usedAt time.Time) error {
				return assert.AnError
			},
		}
		devices := &mockDeviceRepo{
			touchLastSeenFunc: func(ctx context.Context, id string, seenAt time.Time) error {
				return assert.AnError
			},
		}
		svc := NewTokenService(tokens, devices, hasher)

		identity, err := svc.Authenticate(context.Background(), raw)
		require.NoError(t, err)
		assert.Equal(t, "user-1", identity.UserID)
	})

	t.Run("storage failure is not an auth failure", func(t *testing.T) {
		tokens := &mockTokenRepo{
			findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.AppToken, error) {
				return nil, assert.AnError
			},
		}
		svc := NewTokenService(tokens, &mockDeviceRepo{}, hasher)

		_, err := svc.Authenticate(context.Background(), raw)
		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
	})
}
