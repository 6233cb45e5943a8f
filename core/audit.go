package core

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LifecycleTag accompanies every lifecycle event. It is reserved for
// disambiguating extension points and currently always 2.
const LifecycleTag = 2

// LifecycleListener observes account reconciliation. Return values are not
// consumed; implementations should not block the login.
type LifecycleListener interface {
	UserCreated(ctx context.Context, profile RemoteProfile, userID int64, tag int)
	UserLogin(ctx context.Context, profile RemoteProfile, userID int64, tag int)
}

// RedirectFilter may replace the default post-login target.
type RedirectFilter func(ctx context.Context, target string) string

// LogListener writes lifecycle events to a logrus logger.
type LogListener struct {
	Log logrus.FieldLogger
}

func (l LogListener) UserCreated(ctx context.Context, p RemoteProfile, userID int64, tag int) {
	l.entry(ctx, p, userID, tag).Info("sso_user_created")
}

func (l LogListener) UserLogin(ctx context.Context, p RemoteProfile, userID int64, tag int) {
	l.entry(ctx, p, userID, tag).Info("sso_user_login")
}

func (l LogListener) entry(ctx context.Context, p RemoteProfile, userID int64, tag int) *logrus.Entry {
	log := l.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithFields(logrus.Fields{
		"user_id":  userID,
		"username": p.Name,
		"tag":      tag,
	}).WithContext(ctx)
}
