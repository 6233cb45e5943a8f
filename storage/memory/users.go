package memorystore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PaulFidika/ssokit/core"
)

// Users is an in-memory core.UserStore. core.PrivilegedUserID is reserved for
// the administrator installed with Bootstrap; CreateUser allocates from 2.
type Users struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*core.User
}

func NewUsers() *Users {
	return &Users{nextID: core.PrivilegedUserID + 1, byID: make(map[int64]*core.User)}
}

func (u *Users) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	_ = ctx
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, usr := range u.byID {
		if usr.Username == username {
			return cloneUser(usr), nil
		}
	}
	return nil, core.ErrUserNotFound
}

func (u *Users) GetUser(ctx context.Context, id int64) (*core.User, error) {
	_ = ctx
	u.mu.RLock()
	defer u.mu.RUnlock()
	usr, ok := u.byID[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return cloneUser(usr), nil
}

func (u *Users) EmailExists(ctx context.Context, email string) (bool, error) {
	_ = ctx
	email = strings.TrimSpace(email)
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, usr := range u.byID {
		if strings.EqualFold(usr.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (u *Users) CreateUser(ctx context.Context, nu core.NewUser) (int64, error) {
	_ = ctx
	u.mu.Lock()
	defer u.mu.Unlock()
	id := u.nextID
	if err := u.insertLocked(id, nu); err != nil {
		return 0, err
	}
	u.nextID++
	return id, nil
}

// Bootstrap installs the administrator account at core.PrivilegedUserID.
func (u *Users) Bootstrap(ctx context.Context, nu core.NewUser) (int64, error) {
	_ = ctx
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.byID[core.PrivilegedUserID]; ok {
		return 0, fmt.Errorf("administrator already bootstrapped")
	}
	if err := u.insertLocked(core.PrivilegedUserID, nu); err != nil {
		return 0, err
	}
	return core.PrivilegedUserID, nil
}

func (u *Users) insertLocked(id int64, nu core.NewUser) error {
	for _, usr := range u.byID {
		if usr.Username == nu.Username {
			return fmt.Errorf("username %q already taken", nu.Username)
		}
		if strings.EqualFold(usr.Email, nu.Email) {
			return fmt.Errorf("email %q already taken", nu.Email)
		}
	}
	u.byID[id] = &core.User{
		ID:           id,
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Meta:         map[string]string{},
		CreatedAt:    time.Now().UTC(),
	}
	return nil
}

func (u *Users) SetUserMeta(ctx context.Context, userID int64, key, value string) error {
	_ = ctx
	u.mu.Lock()
	defer u.mu.Unlock()
	usr, ok := u.byID[userID]
	if !ok {
		return core.ErrUserNotFound
	}
	usr.Meta[key] = value
	return nil
}

func cloneUser(in *core.User) *core.User {
	out := *in
	out.Meta = make(map[string]string, len(in.Meta))
	for k, v := range in.Meta {
		out.Meta[k] = v
	}
	return &out
}
