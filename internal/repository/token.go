package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ternary-app/link-server/internal/model"
)

type AppTokenRepository interface {
	Create(ctx context.Context, params model.CreateAppTokenParams) (*model.AppToken, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.AppToken, error)
	// FindLatestByUserID backs the device_id hint in poll responses; callers
	// treat a nil result as "no hint".
	FindLatestByUserID(ctx context.Context, userID string) (*model.AppToken, error)
	RevokeByDevice(ctx context.Context, userID, deviceID string, revokedAt time.Time) (int64, error)
	TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) AppTokenRepository
}

type tokenDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type appTokenRepo struct {
	db tokenDB
}

func NewAppTokenRepository(db *sqlx.DB) AppTokenRepository {
	return &appTokenRepo{db: db}
}

func (r *appTokenRepo) WithTx(tx *sqlx.Tx) AppTokenRepository {
	return &appTokenRepo{db: tx}
}

func (r *appTokenRepo) Create(ctx context.Context, params model.CreateAppTokenParams) (*model.AppToken, error) {
	var token model.AppToken
	err := r.db.GetContext(ctx, &token, `
		INSERT INTO app_tokens (user_id, device_id, token_hash, scope, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.UserID, params.DeviceID, params.TokenHash, params.Scope, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *appTokenRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AppToken, error) {
	var token model.AppToken
	err := r.db.GetContext(ctx, &token, `
		SELECT * FROM app_tokens WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&token, err)
}

func (r *appTokenRepo) FindLatestByUserID(ctx context.Context, userID string) (*model.AppToken, error) {
	var token model.AppToken
	err := r.db.GetContext(ctx, &token, `
		SELECT * FROM app_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, userID)
	return HandleNotFound(&token, err)
}

func (r *appTokenRepo) RevokeByDevice(ctx context.Context, userID, deviceID string, revokedAt time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE app_tokens SET revoked_at = $3
		WHERE user_id = $1 AND device_id = $2 AND revoked_at IS NULL
	`, userID, deviceID, revokedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *appTokenRepo) TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE app_tokens SET last_used_at = $2 WHERE id = $1
	`, id, usedAt)
	return err
}
