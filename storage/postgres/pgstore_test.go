package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/PaulFidika/ssokit/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("SSOKIT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SSOKIT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool), "migrations must be re-runnable")
	return pool
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(testPool(t))
	suffix := uuid.NewString()[:8]
	name := "alice-" + suffix
	email := "alice-" + suffix + "@example.com"

	_, err := users.GetUserByUsername(ctx, name)
	require.ErrorIs(t, err, core.ErrUserNotFound)

	id, err := users.CreateUser(ctx, core.NewUser{Username: name, Email: email, PasswordHash: "hash"})
	require.NoError(t, err)
	require.Greater(t, id, core.PrivilegedUserID)

	_, err = users.CreateUser(ctx, core.NewUser{Username: name, Email: "x" + email, PasswordHash: "hash"})
	require.Error(t, err)

	exists, err := users.EmailExists(ctx, "ALICE-"+suffix+"@example.com")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, users.SetUserMeta(ctx, id, "first_name", "Alice"))
	require.NoError(t, users.SetUserMeta(ctx, id, "first_name", "Alicia"))
	require.ErrorIs(t, users.SetUserMeta(ctx, -1, "first_name", "x"), core.ErrUserNotFound)

	u, err := users.GetUserByUsername(ctx, name)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "Alicia", u.Meta["first_name"])
}

func TestBootstrapReservesPrivilegedID(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(testPool(t))
	suffix := uuid.NewString()[:8]

	// The database may already hold an administrator from an earlier run.
	if id, err := users.Bootstrap(ctx, core.NewUser{Username: "admin-" + suffix, Email: "admin-" + suffix + "@example.com"}); err == nil {
		require.Equal(t, core.PrivilegedUserID, id)
	}
	_, err := users.Bootstrap(ctx, core.NewUser{Username: "root-" + suffix, Email: "root-" + suffix + "@example.com"})
	require.Error(t, err)

	id, err := users.CreateUser(ctx, core.NewUser{Username: "bob-" + suffix, Email: "bob-" + suffix + "@example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	require.NotEqual(t, core.PrivilegedUserID, id)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessions(testPool(t))
	key := "test:" + uuid.NewString()

	require.NoError(t, sessions.Ping(ctx))
	require.NoError(t, sessions.Set(ctx, key, []byte("v1"), time.Hour))
	require.NoError(t, sessions.Set(ctx, key, []byte("v2"), time.Hour))
	v, ok, err := sessions.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", string(v))

	require.NoError(t, sessions.Set(ctx, key+":old", []byte("x"), time.Millisecond))
	time.Sleep(10 * time.Millisecond)
	_, ok, err = sessions.Get(ctx, key+":old")
	require.NoError(t, err)
	require.False(t, ok)

	n, err := sessions.PurgeExpired(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)

	require.NoError(t, sessions.Del(ctx, key))
	_, ok, err = sessions.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}
