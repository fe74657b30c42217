package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gitlab.ozon.dev/qwestard/storefront/internal/apperr"
	"gitlab.ozon.dev/qwestard/storefront/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.get(ctx, `SELECT id, name, email, is_admin, push_token FROM users WHERE id=$1`, id)
}

func (r *UserRepository) GetByToken(ctx context.Context, token string) (*models.User, error) {
	return r.get(ctx, `SELECT id, name, email, is_admin, push_token FROM users WHERE auth_token=$1`, token)
}

// SetPushToken is last-write-wins: a user re-registering from another device
// simply replaces the previous token.
func (r *UserRepository) SetPushToken(ctx context.Context, userID, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET push_token=$1 WHERE id=$2`, token, userID)
	if err != nil {
		return fmt.Errorf("set push token: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *UserRepository) get(ctx context.Context, query string, arg string) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.PushToken)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
