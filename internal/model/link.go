package model

import "time"

type LinkStatus string

const (
	// LinkStatusPending is the state between initiate and confirm.
	LinkStatusPending LinkStatus = "pending"
	// LinkStatusConfirmed is terminal. A confirmed link whose token_temp has
	// been cleared has delivered its token; there is no separate stored state.
	LinkStatusConfirmed LinkStatus = "confirmed"
	// LinkStatusExpired is never stored. It is derived from expires_at at read
	// time and only appears on the wire.
	LinkStatusExpired LinkStatus = "expired"
)

// DeviceLink is one pairing attempt: the row behind the code the human types
// and the polling token the device holds.
type DeviceLink struct {
	ID           string     `db:"id" json:"id"`
	Code         string     `db:"code" json:"code"`
	PollingToken string     `db:"polling_token" json:"-"`
	DeviceName   *string    `db:"device_name" json:"deviceName,omitempty"`
	Platform     *string    `db:"platform" json:"platform,omitempty"`
	AppVersion   *string    `db:"app_version" json:"appVersion,omitempty"`
	Status       LinkStatus `db:"status" json:"status"`
	UserID       *string    `db:"user_id" json:"userId,omitempty"`
	TokenTemp    *string    `db:"token_temp" json:"-"`
	ExpiresAt    time.Time  `db:"expires_at" json:"expiresAt"`
	ApprovedAt   *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}

// Expired reports whether the link has aged out. Only meaningful for pending
// links; confirmation already happened under a valid window, so a confirmed
// link stays pollable.
func (l *DeviceLink) Expired(now time.Time) bool {
	return l.Status == LinkStatusPending && now.After(l.ExpiresAt)
}

type CreateDeviceLinkParams struct {
	Code         string
	PollingToken string
	DeviceName   *string
	Platform     *string
	AppVersion   *string
	ExpiresAt    time.Time
}
