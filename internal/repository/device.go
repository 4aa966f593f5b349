package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ternary-app/link-server/internal/model"
)

type DeviceRepository interface {
	Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error)
	FindByID(ctx context.Context, id string) (*model.Device, error)
	ListWithTokenByUserID(ctx context.Context, userID string) ([]model.DeviceWithToken, error)
	TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) DeviceRepository
}

type deviceDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type deviceRepo struct {
	db deviceDB
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) WithTx(tx *sqlx.Tx) DeviceRepository {
	return &deviceRepo{db: tx}
}

func (r *deviceRepo) Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		INSERT INTO devices (id, user_id, name, platform, app_version)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.ID, params.UserID, params.Name, params.Platform, params.AppVersion)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		SELECT * FROM devices WHERE id = $1
	`, id)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) ListWithTokenByUserID(ctx context.Context, userID string) ([]model.DeviceWithToken, error) {
	var devices []model.DeviceWithToken
	err := r.db.SelectContext(ctx, &devices, `
		SELECT d.*,
			t.revoked_at AS token_revoked_at,
			t.last_used_at AS token_last_used_at,
			t.created_at AS token_created_at
		FROM devices d
		LEFT JOIN LATERAL (
			SELECT revoked_at, last_used_at, created_at
			FROM app_tokens
			WHERE device_id = d.id
			ORDER BY created_at DESC
			LIMIT 1
		) t ON true
		WHERE d.user_id = $1
		ORDER BY d.created_at DESC
	`, userID)
	return devices, err
}

func (r *deviceRepo) TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET last_seen_at = $2, updated_at = $2 WHERE id = $1
	`, id, seenAt)
	return err
}
