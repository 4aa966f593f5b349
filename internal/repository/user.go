package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ternary-app/link-server/internal/model"
)

// UserRepository reads the tables owned by the external identity provider.
// Nothing here writes users or sessions; session cleanup is the one exception,
// shared with the provider by convention.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindBySessionTokenHash resolves a human session bearer token (already
	// hashed) to its user, enforcing session expiry at read time.
	FindBySessionTokenHash(ctx context.Context, tokenHash string) (*model.User, error)
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

type userDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type userRepo struct {
	db userDB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE id = $1
	`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindBySessionTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT u.* FROM users u
		JOIN user_sessions s ON s.user_id = u.id
		WHERE s.token_hash = $1 AND s.expires_at > NOW()
	`, tokenHash)
	return HandleNotFound(&user, err)
}

func (r *userRepo) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM user_sessions WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
