package model

import "time"

type Device struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"userId"`
	Name       *string    `db:"name" json:"name,omitempty"`
	Platform   *string    `db:"platform" json:"platform,omitempty"`
	AppVersion *string    `db:"app_version" json:"appVersion,omitempty"`
	LastSeenAt *time.Time `db:"last_seen_at" json:"lastSeenAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

type CreateDeviceParams struct {
	ID         string
	UserID     string
	Name       *string
	Platform   *string
	AppVersion *string
}

// DeviceWithToken is a device joined with the status of its most recent token,
// used by the dashboard device list.
type DeviceWithToken struct {
	Device
	TokenRevokedAt  *time.Time `db:"token_revoked_at" json:"tokenRevokedAt,omitempty"`
	TokenLastUsedAt *time.Time `db:"token_last_used_at" json:"tokenLastUsedAt,omitempty"`
	TokenCreatedAt  *time.Time `db:"token_created_at" json:"tokenCreatedAt,omitempty"`
}
