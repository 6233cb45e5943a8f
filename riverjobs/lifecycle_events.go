package riverjobs

import (
	"context"
	"errors"
	"time"

	"github.com/PaulFidika/ssokit/core"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/sirupsen/logrus"
)

const (
	EventUserCreated = "user_created"
	EventUserLogin   = "user_login"
)

// LifecycleEventArgs carries one account lifecycle event to a background worker.
type LifecycleEventArgs struct {
	Event   string             `json:"event"`
	UserID  int64              `json:"user_id"`
	Tag     int                `json:"tag"`
	Profile core.RemoteProfile `json:"profile"`
}

func (LifecycleEventArgs) Kind() string { return "ssokit_lifecycle_event" }

func (LifecycleEventArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: river.QueueDefault, MaxAttempts: 5}
}

// JobInserter is the subset of *river.Client used to enqueue jobs.
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// QueueListener is a core.LifecycleListener that defers event handling to
// River. Enqueue failures are logged; they never fail the login.
type QueueListener struct {
	jobs JobInserter
	log  logrus.FieldLogger
}

func NewQueueListener(jobs JobInserter, log logrus.FieldLogger) *QueueListener {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &QueueListener{jobs: jobs, log: log}
}

func (l *QueueListener) UserCreated(ctx context.Context, p core.RemoteProfile, userID int64, tag int) {
	l.enqueue(ctx, LifecycleEventArgs{Event: EventUserCreated, UserID: userID, Tag: tag, Profile: p})
}

func (l *QueueListener) UserLogin(ctx context.Context, p core.RemoteProfile, userID int64, tag int) {
	l.enqueue(ctx, LifecycleEventArgs{Event: EventUserLogin, UserID: userID, Tag: tag, Profile: p})
}

func (l *QueueListener) enqueue(ctx context.Context, args LifecycleEventArgs) {
	if _, err := l.jobs.Insert(ctx, args, nil); err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{"event": args.Event, "user_id": args.UserID}).Error("sso_lifecycle_enqueue_failed")
	}
}

// LifecycleEventWorker replays queued events into listeners registered by the host.
type LifecycleEventWorker struct {
	river.WorkerDefaults[LifecycleEventArgs]
	listeners []core.LifecycleListener
}

func NewLifecycleEventWorker(listeners ...core.LifecycleListener) *LifecycleEventWorker {
	return &LifecycleEventWorker{listeners: listeners}
}

func (w *LifecycleEventWorker) Timeout(*river.Job[LifecycleEventArgs]) time.Duration {
	return time.Minute
}

func (w *LifecycleEventWorker) Work(ctx context.Context, job *river.Job[LifecycleEventArgs]) error {
	args := job.Args
	for _, l := range w.listeners {
		switch args.Event {
		case EventUserCreated:
			l.UserCreated(ctx, args.Profile, args.UserID, args.Tag)
		case EventUserLogin:
			l.UserLogin(ctx, args.Profile, args.UserID, args.Tag)
		default:
			return river.JobCancel(errors.New("unknown lifecycle event " + args.Event))
		}
	}
	return nil
}
