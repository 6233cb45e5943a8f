// Package pgstore keeps user records and session records in Postgres.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/PaulFidika/ssokit/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Users implements core.UserStore on the ssokit.users and ssokit.user_meta tables.
type Users struct {
	pg *pgxpool.Pool
}

func NewUsers(pg *pgxpool.Pool) *Users { return &Users{pg: pg} }

func (u *Users) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	var usr core.User
	err := u.pg.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM ssokit.users
		WHERE username = $1
	`, username).Scan(&usr.ID, &usr.Username, &usr.Email, &usr.PasswordHash, &usr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	meta, err := u.userMeta(ctx, usr.ID)
	if err != nil {
		return nil, err
	}
	usr.Meta = meta
	return &usr, nil
}

func (u *Users) userMeta(ctx context.Context, userID int64) (map[string]string, error) {
	rows, err := u.pg.Query(ctx, `SELECT meta_key, meta_value FROM ssokit.user_meta WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (u *Users) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := u.pg.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM ssokit.users WHERE lower(email) = lower($1))
	`, email).Scan(&exists)
	return exists, err
}

func (u *Users) CreateUser(ctx context.Context, nu core.NewUser) (int64, error) {
	var id int64
	err := u.pg.QueryRow(ctx, `
		INSERT INTO ssokit.users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id
	`, nu.Username, nu.Email, nu.PasswordHash).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("user already exists (%s): %w", pgErr.ConstraintName, err)
		}
		return 0, err
	}
	return id, nil
}

// Bootstrap installs the administrator account at core.PrivilegedUserID. The
// identity sequence never hands out that id.
func (u *Users) Bootstrap(ctx context.Context, nu core.NewUser) (int64, error) {
	_, err := u.pg.Exec(ctx, `
		INSERT INTO ssokit.users (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`, core.PrivilegedUserID, nu.Username, nu.Email, nu.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("administrator already bootstrapped (%s): %w", pgErr.ConstraintName, err)
		}
		return 0, err
	}
	return core.PrivilegedUserID, nil
}

func (u *Users) SetUserMeta(ctx context.Context, userID int64, key, value string) error {
	tag, err := u.pg.Exec(ctx, `
		INSERT INTO ssokit.user_meta (user_id, meta_key, meta_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value, updated_at = now()
	`, userID, key, value)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return core.ErrUserNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}
