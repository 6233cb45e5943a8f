package memorystore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/PaulFidika/ssokit/core"
	"github.com/stretchr/testify/require"
)

func TestKVExpiry(t *testing.T) {
	ctx := context.Background()
	kv := NewKV()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, kv.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, kv.Set(ctx, "c", []byte("3"), time.Hour))

	v, ok, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", string(v))

	now = now.Add(2 * time.Minute)
	_, ok, err = kv.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	now = now.Add(2 * time.Hour)
	n, err := kv.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, ok, _ = kv.Get(ctx, "b")
	require.True(t, ok)

	require.NoError(t, kv.Del(ctx, "b"))
	_, ok, _ = kv.Get(ctx, "b")
	require.False(t, ok)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	users := NewUsers()

	id, err := users.CreateUser(ctx, core.NewUser{Username: "alice", Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	require.Equal(t, int64(2), id)

	admin, err := users.Bootstrap(ctx, core.NewUser{Username: "admin", Email: "admin@x.com"})
	require.NoError(t, err)
	require.Equal(t, core.PrivilegedUserID, admin)
	_, err = users.Bootstrap(ctx, core.NewUser{Username: "root", Email: "root@x.com"})
	require.Error(t, err)
	_, err = users.CreateUser(ctx, core.NewUser{Username: "admin", Email: "admin2@x.com"})
	require.Error(t, err)

	_, err = users.CreateUser(ctx, core.NewUser{Username: "alice", Email: "other@x.com"})
	require.Error(t, err)
	_, err = users.CreateUser(ctx, core.NewUser{Username: "al", Email: "A@X.com"})
	require.Error(t, err)

	u, err := users.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	_, err = users.GetUserByUsername(ctx, "Alice")
	require.ErrorIs(t, err, core.ErrUserNotFound)

	exists, err := users.EmailExists(ctx, "A@x.com")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, users.SetUserMeta(ctx, id, "first_name", "Alice"))
	u.Meta["first_name"] = "mutated"
	u, err = users.GetUser(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Alice", u.Meta["first_name"])
	require.ErrorIs(t, users.SetUserMeta(ctx, 99, "k", "v"), core.ErrUserNotFound)
}

func TestUsersNeverAllocatePrivilegedID(t *testing.T) {
	ctx := context.Background()
	users := NewUsers()
	for i := 0; i < 3; i++ {
		id, err := users.CreateUser(ctx, core.NewUser{Username: fmt.Sprintf("u%d", i), Email: fmt.Sprintf("u%d@x.com", i)})
		require.NoError(t, err)
		require.NotEqual(t, core.PrivilegedUserID, id)
	}
	_, err := users.GetUser(ctx, core.PrivilegedUserID)
	require.ErrorIs(t, err, core.ErrUserNotFound)
}
