package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	logx "tempobot/pkg/logx"
)

const stopGrace = 10 * time.Second

// Run drives cycles from the configured schedule until ctx is cancelled.
// Cycles never overlap; a tick that fires while a cycle is still running is
// skipped.
func (o *Orchestrator) Run(ctx context.Context) error {
	spec, err := ParseSchedule(o.cfg.Schedule)
	if err != nil {
		return err
	}
	sched, err := spec.Schedule()
	if err != nil {
		return err
	}

	cl := cronLogger{log: o.log.With(logx.String("comp", "cron"))}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(sched, cron.FuncJob(func() { o.Cycle(ctx) }))

	if o.cfg.RunOnStart {
		o.Cycle(ctx)
	}

	c.Start()
	o.log.Info("poll loop started", logx.String("schedule", o.cfg.Schedule), logx.Time("next", sched.Next(time.Now())))

	<-ctx.Done()
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(stopGrace):
		o.log.Warn("poll loop stop timed out", logx.Duration("grace", stopGrace))
	}
	o.log.Info("poll loop stopped")
	return nil
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
