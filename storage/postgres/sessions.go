package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sessions is a session store on ssokit.sessions. Expired rows are invisible
// to Get and removed by PurgeExpired.
type Sessions struct {
	pg *pgxpool.Pool
}

func NewSessions(pg *pgxpool.Pool) *Sessions { return &Sessions{pg: pg} }

func (s *Sessions) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pg.QueryRow(ctx, `
		SELECT value FROM ssokit.sessions
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
	`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Sessions) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expires = &t
	}
	_, err := s.pg.Exec(ctx, `
		INSERT INTO ssokit.sessions (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, key, value, expires)
	return err
}

func (s *Sessions) Del(ctx context.Context, key string) error {
	_, err := s.pg.Exec(ctx, `DELETE FROM ssokit.sessions WHERE key = $1`, key)
	return err
}

// PurgeExpired deletes expired session rows and reports how many were removed.
func (s *Sessions) PurgeExpired(ctx context.Context) (int, error) {
	tag, err := s.pg.Exec(ctx, `DELETE FROM ssokit.sessions WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Ping reports whether Postgres is reachable.
func (s *Sessions) Ping(ctx context.Context) error { return s.pg.Ping(ctx) }
