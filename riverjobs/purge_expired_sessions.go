package riverjobs

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/sirupsen/logrus"
)

var unfinishedStates = []rivertype.JobState{
	rivertype.JobStateAvailable,
	rivertype.JobStatePending,
	rivertype.JobStateRetryable,
	rivertype.JobStateRunning,
	rivertype.JobStateScheduled,
}

type PurgeExpiredSessionsArgs struct{}

func (PurgeExpiredSessionsArgs) Kind() string { return "ssokit_purge_expired_sessions" }

func (PurgeExpiredSessionsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue: river.QueueDefault,
		// At most one purge queued or running at a time; a finished purge
		// does not block the next scheduled one.
		UniqueOpts: river.UniqueOpts{
			ByArgs:  true,
			ByQueue: true,
			ByState: unfinishedStates,
		},
	}
}

// SessionPurger removes expired session records from a store that does not
// expire them on its own (Postgres, in-memory).
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type PurgeExpiredSessionsWorker struct {
	river.WorkerDefaults[PurgeExpiredSessionsArgs]
	store SessionPurger
	log   logrus.FieldLogger
}

func NewPurgeExpiredSessionsWorker(store SessionPurger, log logrus.FieldLogger) *PurgeExpiredSessionsWorker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PurgeExpiredSessionsWorker{store: store, log: log}
}

func (w *PurgeExpiredSessionsWorker) Timeout(*river.Job[PurgeExpiredSessionsArgs]) time.Duration {
	return 5 * time.Minute
}

func (w *PurgeExpiredSessionsWorker) Work(ctx context.Context, job *river.Job[PurgeExpiredSessionsArgs]) error {
	if w == nil || w.store == nil {
		return errors.New("ssokit purge: session store not configured")
	}
	n, err := w.store.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	w.log.WithField("purged", n).Info("sso_sessions_purged")
	return nil
}
