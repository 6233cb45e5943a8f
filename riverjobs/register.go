package riverjobs

import (
	"fmt"

	"github.com/PaulFidika/ssokit/core"
	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RegisterWorkers adds the session purge and lifecycle event workers to a
// River workers registry.
func RegisterWorkers(ws *river.Workers, store SessionPurger, log logrus.FieldLogger, listeners ...core.LifecycleListener) {
	river.AddWorker(ws, NewPurgeExpiredSessionsWorker(store, log))
	river.AddWorker(ws, NewLifecycleEventWorker(listeners...))
}

// ParseSchedule parses a standard five-field cron expression.
func ParseSchedule(cronSpec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule '%s': %w", cronSpec, err)
	}
	return schedule, nil
}

// AddPurgeExpiredSessionsPeriodicJob enqueues the purge job on a cron schedule.
//
// Example cron: "*/15 * * * *" (every 15 minutes).
func AddPurgeExpiredSessionsPeriodicJob[T any](client *river.Client[T], cronSpec string, runOnStart bool) error {
	schedule, err := ParseSchedule(cronSpec)
	if err != nil {
		return err
	}
	args := PurgeExpiredSessionsArgs{}
	opts := args.InsertOpts()
	client.PeriodicJobs().Add(
		river.NewPeriodicJob(
			schedule,
			func() (river.JobArgs, *river.InsertOpts) { return args, &opts },
			&river.PeriodicJobOpts{RunOnStart: runOnStart},
		),
	)
	return nil
}
