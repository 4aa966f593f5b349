package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ternary-app/link-server/internal/model"
)

type DeviceLinkRepository interface {
	Create(ctx context.Context, params model.CreateDeviceLinkParams) (*model.DeviceLink, error)
	FindByCode(ctx context.Context, code string) (*model.DeviceLink, error)
	FindByPollingToken(ctx context.Context, pollingToken string) (*model.DeviceLink, error)
	// Confirm flips pending -> confirmed and parks the raw token for pickup.
	// The WHERE status = 'pending' guard makes concurrent confirms race
	// cleanly: the loser sees zero rows affected.
	Confirm(ctx context.Context, code, userID, tokenTemp string, approvedAt time.Time) (bool, error)
	// ClaimToken atomically reads and clears token_temp. At most one caller
	// ever receives a non-nil token for a given link.
	ClaimToken(ctx context.Context, pollingToken string) (*string, error)
	DeleteExpired(ctx context.Context, consumedRetention time.Duration) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) DeviceLinkRepository
}

// linkDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type linkDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type deviceLinkRepo struct {
	db linkDB
}

func NewDeviceLinkRepository(db *sqlx.DB) DeviceLinkRepository {
	return &deviceLinkRepo{db: db}
}

func (r *deviceLinkRepo) WithTx(tx *sqlx.Tx) DeviceLinkRepository {
	return &deviceLinkRepo{db: tx}
}

func (r *deviceLinkRepo) Create(ctx context.Context, params model.CreateDeviceLinkParams) (*model.DeviceLink, error) {
	var link model.DeviceLink
	err := r.db.GetContext(ctx, &link, `
		INSERT INTO device_links (code, polling_token, device_name, platform, app_version, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		RETURNING *
	`, params.Code, params.PollingToken, params.DeviceName, params.Platform, params.AppVersion, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *deviceLinkRepo) FindByCode(ctx context.Context, code string) (*model.DeviceLink, error) {
	var link model.DeviceLink
	// Codes are only unique among pending links; prefer the newest row so a
	// swept-but-lingering consumed link cannot shadow an active code.
	err := r.db.GetContext(ctx, &link, `
		SELECT * FROM device_links
		WHERE code = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, code)
	return HandleNotFound(&link, err)
}

func (r *deviceLinkRepo) FindByPollingToken(ctx context.Context, pollingToken string) (*model.DeviceLink, error) {
	var link model.DeviceLink
	err := r.db.GetContext(ctx, &link, `
		SELECT * FROM device_links WHERE polling_token = $1
	`, pollingToken)
	return HandleNotFound(&link, err)
}

func (r *deviceLinkRepo) Confirm(ctx context.Context, code, userID, tokenTemp string, approvedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE device_links SET
			status = 'confirmed',
			user_id = $2,
			token_temp = $3,
			approved_at = $4
		WHERE code = $1 AND status = 'pending'
	`, code, userID, tokenTemp, approvedAt)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *deviceLinkRepo) ClaimToken(ctx context.Context, pollingToken string) (*string, error) {
	// Read-and-null in one statement. The row lock serializes concurrent
	// polls; RETURNING prev.token_temp hands back the pre-update value.
	var token string
	err := r.db.GetContext(ctx, &token, `
		UPDATE device_links AS l SET token_temp = NULL
		FROM (
			SELECT id, token_temp FROM device_links
			WHERE polling_token = $1 AND token_temp IS NOT NULL
			FOR UPDATE
		) prev
		WHERE l.id = prev.id
		RETURNING prev.token_temp
	`, pollingToken)
	return HandleNotFound(&token, err)
}

func (r *deviceLinkRepo) DeleteExpired(ctx context.Context, consumedRetention time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM device_links
		WHERE (status = 'pending' AND expires_at < NOW())
		OR (status = 'confirmed' AND token_temp IS NULL AND approved_at < $1)
	`, time.Now().Add(-consumedRetention))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
