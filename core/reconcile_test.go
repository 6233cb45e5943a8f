package core

import (
	"context"
	"errors"
	"testing"

	"github.com/PaulFidika/ssokit/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func strp(s string) *string { return &s }

func TestReconcile_CreatesNewAccount(t *testing.T) {
	users := newFakeUsers()
	l := &recordingListener{}
	m := metrics.New(prometheus.NewRegistry())
	r := NewReconciler(users, []LifecycleListener{l}, nil, m)

	var generated string
	r.password = func() (string, error) {
		pw, err := generatePassword()
		generated = pw
		return pw, err
	}

	out, err := r.Reconcile(context.Background(), RemoteProfile{
		Name: "alice", Email: "a@x.com", FirstName: strp("Alice"), LastName: strp("Liddell"),
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, out.Kind)
	require.Equal(t, 1, users.created)
	require.Equal(t, map[string]string{"first_name": "Alice", "last_name": "Liddell"}, users.meta[out.UserID])
	require.Equal(t, []lifecycleEvent{{"user_created", out.UserID, 2}}, l.events)
	require.Equal(t, 1.0, testutil.ToFloat64(m.UsersCreated))

	u, err := users.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(generated)))
}

func TestReconcile_MatchesByUsername(t *testing.T) {
	users := newFakeUsers()
	users.add(42, "alice", "old@x.com")
	l := &recordingListener{}
	r := NewReconciler(users, []LifecycleListener{l}, nil, nil)

	out, err := r.Reconcile(context.Background(), RemoteProfile{Name: "alice", Email: "a@x.com", LastName: strp("L")})
	require.NoError(t, err)
	require.Equal(t, Outcome{Kind: OutcomeMatched, UserID: 42}, out)
	require.Zero(t, users.created)
	require.Equal(t, map[string]string{"last_name": "L"}, users.meta[42])
	require.Equal(t, []lifecycleEvent{{"user_login", 42, LifecycleTag}}, l.events)
}

func TestReconcile_EmailOnlyMatchIsAClash(t *testing.T) {
	users := newFakeUsers()
	users.add(42, "bob", "a@x.com")
	l := &recordingListener{}
	r := NewReconciler(users, []LifecycleListener{l}, nil, nil)

	_, err := r.Reconcile(context.Background(), RemoteProfile{Name: "alice", Email: "a@x.com"})
	require.ErrorIs(t, err, ErrAccountClash)
	require.Equal(t, MsgAccountClash, UserMessage(err))
	require.Zero(t, users.created)
	require.Empty(t, users.meta)
	require.Empty(t, l.events)
}

func TestReconcile_PrivilegedAccount(t *testing.T) {
	t.Run("matched by username", func(t *testing.T) {
		users := newFakeUsers()
		users.add(PrivilegedUserID, "admin", "admin@x.com")
		l := &recordingListener{}
		r := NewReconciler(users, []LifecycleListener{l}, nil, nil)

		_, err := r.Reconcile(context.Background(), RemoteProfile{Name: "admin", Email: "other@x.com", FirstName: strp("A")})
		require.ErrorIs(t, err, ErrPrivilegedAccount)
		require.Empty(t, users.meta)
		require.Empty(t, l.events)
	})

	t.Run("created with id 1", func(t *testing.T) {
		users := newFakeUsers()
		users.nextID = PrivilegedUserID
		l := &recordingListener{}
		r := NewReconciler(users, []LifecycleListener{l}, nil, nil)

		_, err := r.Reconcile(context.Background(), RemoteProfile{Name: "fresh", Email: "fresh@x.com"})
		require.ErrorIs(t, err, ErrPrivilegedAccount)
		require.Empty(t, l.events)
	})
}

type failingUsers struct {
	*fakeUsers
	lookupErr error
	metaErr   error
}

func (f failingUsers) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.fakeUsers.GetUserByUsername(ctx, username)
}

func (f failingUsers) SetUserMeta(ctx context.Context, id int64, k, v string) error {
	if f.metaErr != nil {
		return f.metaErr
	}
	return f.fakeUsers.SetUserMeta(ctx, id, k, v)
}

func TestReconcile_StoreFailures(t *testing.T) {
	t.Run("lookup error aborts", func(t *testing.T) {
		users := failingUsers{fakeUsers: newFakeUsers(), lookupErr: errors.New("db down")}
		r := NewReconciler(users, nil, nil, nil)

		_, err := r.Reconcile(context.Background(), RemoteProfile{Name: "alice", Email: "a@x.com"})
		require.ErrorIs(t, err, ErrAccountClash)
		require.Contains(t, err.Error(), "db down")
	})

	t.Run("meta error is tolerated", func(t *testing.T) {
		users := failingUsers{fakeUsers: newFakeUsers(), metaErr: errors.New("meta table locked")}
		log, hook := quietLogger()
		r := NewReconciler(users, nil, log, nil)

		out, err := r.Reconcile(context.Background(), RemoteProfile{Name: "alice", Email: "a@x.com", FirstName: strp("A")})
		require.NoError(t, err)
		require.Equal(t, OutcomeCreated, out.Kind)
		require.Equal(t, "sso_user_meta_update_failed", hook.LastEntry().Message)
	})
}

func TestGeneratePassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		pw, err := generatePassword()
		require.NoError(t, err)
		require.Len(t, pw, generatedPasswordLen)
		require.Regexp(t, `^[0-9A-Za-z]+$`, pw)
		require.False(t, seen[pw])
		seen[pw] = true
	}
}
