package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeUsers struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*User
	created int
	meta    map[int64]map[string]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{nextID: 2, byID: map[int64]*User{}, meta: map[int64]map[string]string{}}
}

func (f *fakeUsers) add(id int64, username, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id] = &User{ID: id, Username: username, Email: email}
	if id >= f.nextID {
		f.nextID = id + 1
	}
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeUsers) EmailExists(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) CreateUser(_ context.Context, nu NewUser) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.byID[id] = &User{ID: id, Username: nu.Username, Email: nu.Email, PasswordHash: nu.PasswordHash}
	f.created++
	return id, nil
}

func (f *fakeUsers) SetUserMeta(_ context.Context, userID int64, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meta[userID] == nil {
		f.meta[userID] = map[string]string{}
	}
	f.meta[userID][key] = value
	return nil
}

type fakeSession struct {
	uid         int64
	ok          bool
	clears      int
	establishes int
	failSet     bool
}

func (s *fakeSession) Current(context.Context) (int64, bool) { return s.uid, s.ok }

func (s *fakeSession) Clear(context.Context) error {
	s.clears++
	s.uid, s.ok = 0, false
	return nil
}

func (s *fakeSession) Establish(_ context.Context, uid int64) error {
	s.establishes++
	if s.failSet {
		return errors.New("cookie jar full")
	}
	s.uid, s.ok = uid, true
	return nil
}

type lifecycleEvent struct {
	name string
	uid  int64
	tag  int
}

type recordingListener struct {
	events []lifecycleEvent
}

func (r *recordingListener) UserCreated(_ context.Context, _ RemoteProfile, uid int64, tag int) {
	r.events = append(r.events, lifecycleEvent{"user_created", uid, tag})
}

func (r *recordingListener) UserLogin(_ context.Context, _ RemoteProfile, uid int64, tag int) {
	r.events = append(r.events, lifecycleEvent{"user_login", uid, tag})
}

// authServer fakes the token and userinfo endpoints and records the calls made to them.
type authServer struct {
	*httptest.Server
	mu        sync.Mutex
	calls     []string
	tokenForm map[string]string
	bearer    string

	tokenStatus int
	tokenBody   any
	userInfo    any
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()
	a := &authServer{
		tokenStatus: http.StatusOK,
		tokenBody:   map[string]string{"access_token": "tok1", "token_type": "Bearer"},
		userInfo:    map[string]string{"name": "alice", "email": "a@x.com"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		a.mu.Lock()
		a.calls = append(a.calls, "token")
		a.tokenForm = map[string]string{}
		for k := range r.PostForm {
			a.tokenForm[k] = r.PostForm.Get(k)
		}
		a.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(a.tokenStatus)
		_ = json.NewEncoder(w).Encode(a.tokenBody)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.calls = append(a.calls, "userinfo")
		a.bearer = r.Header.Get("Authorization")
		a.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.userInfo)
	})
	a.Server = httptest.NewServer(mux)
	t.Cleanup(a.Close)
	return a
}

func (a *authServer) config() Config {
	return Config{
		ClientID:         "abc",
		ClientSecret:     "s3cret",
		ServerURL:        "https://auth.example",
		TokenEndpoint:    a.URL + "/token",
		UserInfoEndpoint: a.URL + "/userinfo",
		SiteURL:          "https://site.example",
	}
}

func (a *authServer) callLog() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func quietLogger() (*logrus.Logger, *test.Hook) {
	return test.NewNullLogger()
}
