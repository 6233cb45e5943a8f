package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/PaulFidika/ssokit/metrics"
	"github.com/sirupsen/logrus"
)

// PrivilegedUserID is the platform's bootstrap administrator. It may never
// sign in through SSO.
const PrivilegedUserID int64 = 1

// OutcomeKind tells which lifecycle event a reconciliation fired.
type OutcomeKind string

const (
	OutcomeCreated OutcomeKind = "created"
	OutcomeMatched OutcomeKind = "matched"
)

// Outcome is the result of mapping a remote profile onto a local account.
type Outcome struct {
	Kind   OutcomeKind
	UserID int64
}

// Reconciler maps remote profiles onto local accounts, creating them when absent.
type Reconciler struct {
	users     UserStore
	listeners []LifecycleListener
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	password  func() (string, error)
}

func NewReconciler(users UserStore, listeners []LifecycleListener, log logrus.FieldLogger, m *metrics.Metrics) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{users: users, listeners: listeners, log: log, metrics: m, password: generatePassword}
}

// Reconcile resolves p to a local user id.
//
// When neither the username nor the email is known, a new account is created.
// Otherwise the account is resolved by username only; an email-only match
// therefore cannot be resolved and fails with ErrAccountClash.
func (r *Reconciler) Reconcile(ctx context.Context, p RemoteProfile) (Outcome, error) {
	existing, err := r.users.GetUserByUsername(ctx, p.Name)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return Outcome{}, newFlowError(ErrAccountClash, "", fmt.Errorf("lookup username: %w", err))
	}
	emailTaken, err := r.users.EmailExists(ctx, p.Email)
	if err != nil {
		return Outcome{}, newFlowError(ErrAccountClash, "", fmt.Errorf("lookup email: %w", err))
	}

	if existing == nil && !emailTaken {
		return r.create(ctx, p)
	}
	if existing == nil {
		return Outcome{}, newFlowError(ErrAccountClash, "", fmt.Errorf("email %q belongs to another account", p.Email))
	}
	if existing.ID == PrivilegedUserID {
		return Outcome{}, newFlowError(ErrPrivilegedAccount, "", nil)
	}

	r.updateMeta(ctx, existing.ID, p)
	for _, l := range r.listeners {
		l.UserLogin(ctx, p, existing.ID, LifecycleTag)
	}
	return Outcome{Kind: OutcomeMatched, UserID: existing.ID}, nil
}

func (r *Reconciler) create(ctx context.Context, p RemoteProfile) (Outcome, error) {
	pw, err := r.password()
	if err != nil {
		return Outcome{}, newFlowError(ErrAccountClash, "", fmt.Errorf("generate password: %w", err))
	}
	hash, err := hashPassword(pw)
	if err != nil {
		return Outcome{}, newFlowError(ErrAccountClash, "", fmt.Errorf("hash password: %w", err))
	}
	id, err := r.users.CreateUser(ctx, NewUser{Username: p.Name, Email: p.Email, PasswordHash: hash})
	if err != nil || id <= 0 {
		if err == nil {
			err = errors.New("store returned no id")
		}
		return Outcome{}, newFlowError(ErrAccountClash, "", fmt.Errorf("create user: %w", err))
	}
	if id == PrivilegedUserID {
		return Outcome{}, newFlowError(ErrPrivilegedAccount, "", nil)
	}
	r.metrics.IncUsersCreated()

	r.updateMeta(ctx, id, p)
	for _, l := range r.listeners {
		l.UserCreated(ctx, p, id, LifecycleTag)
	}
	return Outcome{Kind: OutcomeCreated, UserID: id}, nil
}

func (r *Reconciler) updateMeta(ctx context.Context, userID int64, p RemoteProfile) {
	set := func(key string, v *string) {
		if v == nil {
			return
		}
		if err := r.users.SetUserMeta(ctx, userID, key, *v); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "key": key}).Warn("sso_user_meta_update_failed")
		}
	}
	set("first_name", p.FirstName)
	set("last_name", p.LastName)
}
