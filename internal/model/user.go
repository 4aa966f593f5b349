package model

import "time"

// User rows are provisioned by the external identity provider; this service
// only reads them.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Plan      string    `db:"plan" json:"plan"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// UserSession is a human browser session minted by the identity provider.
// Looked up here by token hash to authorize approve/confirm/revoke calls.
type UserSession struct {
	ID        string    `db:"id" json:"-"`
	UserID    string    `db:"user_id" json:"userId"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
