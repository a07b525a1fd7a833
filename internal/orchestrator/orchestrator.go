// Package orchestrator runs the daily poll: decide whether tomorrow still has
// to be announced, fetch the feed, notify every sink, then record the day.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tempobot/internal/metrics"
	"tempobot/internal/sink"
	"tempobot/internal/tempo"
	logx "tempobot/pkg/logx"
)

// Fetcher returns a fresh snapshot of the feed.
type Fetcher interface {
	Fetch(ctx context.Context) (tempo.Snapshot, error)
}

// Ledger stores the last announced day.
type Ledger interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, day string) error
}

// State is where the orchestrator currently is within a cycle.
type State int32

const (
	StateIdle State = iota
	StateEvaluating
	StateSkipping
	StateFetching
	StateDispatching
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateEvaluating:
		return "evaluating"
	case StateSkipping:
		return "skipping"
	case StateFetching:
		return "fetching"
	case StateDispatching:
		return "dispatching"
	case StateCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// Outcome summarizes how a cycle ended.
type Outcome string

const (
	OutcomeSkipped      Outcome = "skipped"
	OutcomeFetchFailed  Outcome = "fetch_failed"
	OutcomeNotPublished Outcome = "not_published"
	OutcomeDispatched   Outcome = "dispatched"
	// OutcomeInterrupted means ctx ended during dispatch; nothing was committed.
	OutcomeInterrupted Outcome = "interrupted"
)

const (
	DefaultSchedule      = "120m"
	DefaultSinkTimeout   = 15 * time.Second
	DefaultLedgerTimeout = 5 * time.Second
)

type Config struct {
	// Schedule is a ParseSchedule string; DefaultSchedule when empty.
	Schedule   string
	RunOnStart bool
	// Parallel notifies sinks concurrently instead of one after the other.
	Parallel bool
	// SinkTimeout bounds each sink call, whatever the sink does internally.
	SinkTimeout   time.Duration
	LedgerTimeout time.Duration
}

type Orchestrator struct {
	cfg     Config
	feed    Fetcher
	ledger  Ledger
	sinks   []sink.Sink
	log     logx.Logger
	metrics metrics.Recorder

	now   func() time.Time
	state atomic.Int32
}

func New(cfg Config, feed Fetcher, led Ledger, sinks []sink.Sink, rec metrics.Recorder, log logx.Logger) *Orchestrator {
	if strings.TrimSpace(cfg.Schedule) == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = DefaultSinkTimeout
	}
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = DefaultLedgerTimeout
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Orchestrator{
		cfg:     cfg,
		feed:    feed,
		ledger:  led,
		sinks:   sinks,
		log:     log,
		metrics: rec,
		now:     time.Now,
	}
}

// State reports the current cycle state.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

func (o *Orchestrator) enter(s State) { o.state.Store(int32(s)) }

// Cycle runs one evaluation. It never fails: every error is logged and
// reflected in the returned outcome.
func (o *Orchestrator) Cycle(ctx context.Context) Outcome {
	log := o.log.With(logx.String("cycle_id", uuid.NewString()))
	defer o.enter(StateIdle)

	out := o.cycle(ctx, log)
	o.metrics.IncCycle(string(out))
	log.Debug("cycle done", logx.String("outcome", string(out)))
	return out
}

func (o *Orchestrator) cycle(ctx context.Context, log logx.Logger) Outcome {
	o.enter(StateEvaluating)
	now := o.now().UTC()
	today := now.Format(tempo.DateLayout)
	tomorrow := now.AddDate(0, 0, 1).Format(tempo.DateLayout)

	last, err := o.readLedger(ctx)
	if err != nil {
		log.Warn("ledger unreadable; treating as never announced", logx.Err(err))
		last = ""
	}
	log.Info("evaluating", logx.String("today", today), logx.String("tomorrow", tomorrow), logx.String("last_announced", last))

	if last == tomorrow {
		o.enter(StateSkipping)
		log.Info("tomorrow already announced; skipping")
		return OutcomeSkipped
	}

	o.enter(StateFetching)
	start := time.Now()
	snap, err := o.feed.Fetch(ctx)
	o.metrics.ObserveFetch(time.Since(start), err == nil)
	if err != nil {
		log.Warn("tempo feed fetch failed; retrying next tick", logx.Err(err))
		return OutcomeFetchFailed
	}

	next, ok := snap.Lookup(tomorrow)
	if !ok {
		log.Info("tomorrow not published yet", logx.String("tomorrow", tomorrow))
		return OutcomeNotPublished
	}
	var todayDay *tempo.Day
	if d, ok := snap.Lookup(today); ok {
		todayDay = &d
	}

	o.enter(StateDispatching)
	log.Info("announcing tomorrow", logx.String("day", next.Date), logx.String("state", next.State.String()))
	o.dispatch(ctx, log, todayDay, next)

	if ctx.Err() != nil {
		log.Warn("cycle interrupted before commit", logx.Err(ctx.Err()))
		return OutcomeInterrupted
	}

	o.enter(StateCommitting)
	if err := o.writeLedger(ctx, next.Date); err != nil {
		o.metrics.IncLedgerWriteFailure()
		log.Warn("ledger commit failed; tomorrow will be announced again on every tick until it is writable",
			logx.String("day", next.Date), logx.Err(err))
	} else {
		o.metrics.SetLastAnnounced(next.Time())
	}
	return OutcomeDispatched
}

func (o *Orchestrator) readLedger(ctx context.Context) (string, error) {
	lctx, cancel := context.WithTimeout(ctx, o.cfg.LedgerTimeout)
	defer cancel()
	return o.ledger.Read(lctx)
}

func (o *Orchestrator) writeLedger(ctx context.Context, day string) error {
	lctx, cancel := context.WithTimeout(ctx, o.cfg.LedgerTimeout)
	defer cancel()
	return o.ledger.Write(lctx, day)
}

// dispatch attempts every sink once. Failures stay local to their sink.
func (o *Orchestrator) dispatch(ctx context.Context, log logx.Logger, today *tempo.Day, tomorrow tempo.Day) {
	if len(o.sinks) == 0 {
		log.Warn("no sink configured; nothing delivered")
		return
	}
	if !o.cfg.Parallel {
		for _, s := range o.sinks {
			o.notify(ctx, log, s, today, tomorrow)
		}
		return
	}

	var wg sync.WaitGroup
	for _, s := range o.sinks {
		wg.Add(1)
		go func(s sink.Sink) {
			defer wg.Done()
			o.notify(ctx, log, s, today, tomorrow)
		}(s)
	}
	wg.Wait()
}

func (o *Orchestrator) notify(ctx context.Context, log logx.Logger, s sink.Sink, today *tempo.Day, tomorrow tempo.Day) {
	log = log.With(logx.String("sink", s.Name()), logx.String("kind", s.Kind().String()))
	start := time.Now()
	err := callSink(ctx, o.cfg.SinkTimeout, s, today, tomorrow)
	o.metrics.IncSinkResult(s.Name(), err == nil)
	if err != nil {
		log.Warn("notification failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return
	}
	log.Info("notification sent", logx.Duration("took", time.Since(start)))
}

// callSink runs s.Notify aside so that neither a panic nor a sink ignoring
// its context can hold the cycle past timeout.
func callSink(ctx context.Context, timeout time.Duration, s sink.Sink, today *tempo.Day, tomorrow tempo.Day) error {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in sink %s: %v", s.Name(), r)
			}
		}()
		done <- s.Notify(sctx, today, tomorrow)
	}()

	select {
	case err := <-done:
		return err
	case <-sctx.Done():
		return fmt.Errorf("sink %s: %w", s.Name(), sctx.Err())
	}
}
