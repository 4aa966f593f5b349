package model

import "time"

// AppToken is a durable credential bound to one user and one device. Only the
// hash of the raw secret is ever persisted; rows are kept forever for audit
// and invalidated by setting revoked_at.
type AppToken struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"userId"`
	DeviceID   string     `db:"device_id" json:"deviceId"`
	TokenHash  string     `db:"token_hash" json:"-"`
	Scope      string     `db:"scope" json:"scope"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	LastUsedAt *time.Time `db:"last_used_at" json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

type CreateAppTokenParams struct {
	UserID    string
	DeviceID  string
	TokenHash string
	Scope     string
	ExpiresAt *time.Time
}

// Identity is the request-scoped result of authenticating a device bearer
// token.
type Identity struct {
	UserID   string
	DeviceID string
	Scope    string
}
