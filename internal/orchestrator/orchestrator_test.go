package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tempobot/internal/sink"
	"tempobot/internal/tempo"
	logx "tempobot/pkg/logx"
)

var fixedNow = time.Date(2024, 12, 24, 10, 30, 0, 0, time.UTC)

const (
	yesterday = "2024-12-23"
	today     = "2024-12-24"
	tomorrow  = "2024-12-25"
)

type fakeFeed struct {
	mu    sync.Mutex
	calls int
	snap  tempo.Snapshot
	err   error
}

func (f *fakeFeed) Fetch(ctx context.Context) (tempo.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	value    string
	readErr  error
	writeErr error
	writes   []string
}

func (l *fakeLedger) Read(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.readErr
}

func (l *fakeLedger) Write(ctx context.Context, day string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes = append(l.writes, day)
	if l.writeErr != nil {
		return l.writeErr
	}
	l.value = day
	return nil
}

type call struct {
	today    *tempo.Day
	tomorrow tempo.Day
}

type fakeSink struct {
	name string
	kind sink.Kind

	mu    sync.Mutex
	calls []call

	err   error
	panic bool
	// hang blocks Notify forever, ignoring ctx.
	hang bool
	// wait blocks Notify until ctx is done.
	wait bool
}

func (s *fakeSink) Name() string    { return s.name }
func (s *fakeSink) Kind() sink.Kind { return s.kind }

func (s *fakeSink) Notify(ctx context.Context, today *tempo.Day, tomorrow tempo.Day) error {
	s.mu.Lock()
	s.calls = append(s.calls, call{today: today, tomorrow: tomorrow})
	s.mu.Unlock()
	switch {
	case s.panic:
		panic("boom")
	case s.hang:
		select {}
	case s.wait:
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func day(t *testing.T, date string, st tempo.State) tempo.Day {
	t.Helper()
	d, err := tempo.NewDay(date, st)
	require.NoError(t, err)
	return d
}

func fullSnapshot(t *testing.T) tempo.Snapshot {
	return tempo.Snapshot{
		today:    day(t, today, tempo.White),
		tomorrow: day(t, tomorrow, tempo.Red),
	}
}

type fixture struct {
	feed   *fakeFeed
	ledger *fakeLedger
	msg    *fakeSink
	pub    *fakeSink
	o      *Orchestrator
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		feed:   &fakeFeed{snap: fullSnapshot(t)},
		ledger: &fakeLedger{},
		msg:    &fakeSink{name: "telegram", kind: sink.BestEffort},
		pub:    &fakeSink{name: "mqtt", kind: sink.Acknowledged},
	}
	f.o = New(cfg, f.feed, f.ledger, []sink.Sink{f.msg, f.pub}, nil, logx.Nop())
	f.o.now = func() time.Time { return fixedNow }
	return f
}

func TestCycleSkipsWhenTomorrowAlreadyAnnounced(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	f.ledger.value = tomorrow

	require.Equal(t, OutcomeSkipped, f.o.Cycle(context.Background()))
	require.Zero(t, f.feed.calls)
	require.Zero(t, f.msg.count())
	require.Zero(t, f.pub.count())
	require.Empty(t, f.ledger.writes)
	require.Equal(t, tomorrow, f.ledger.value)
}

func TestCycleAnnouncesFreshDay(t *testing.T) {
	t.Parallel()
	for _, last := range []string{yesterday, ""} {
		last := last
		t.Run("last="+last, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, Config{})
			f.ledger.value = last

			require.Equal(t, OutcomeDispatched, f.o.Cycle(context.Background()))
			require.Equal(t, 1, f.feed.calls)

			for _, s := range []*fakeSink{f.msg, f.pub} {
				require.Equal(t, 1, s.count(), s.name)
				c := s.calls[0]
				require.Equal(t, tomorrow, c.tomorrow.Date)
				require.Equal(t, tempo.Red, c.tomorrow.State)
				require.NotNil(t, c.today)
				require.Equal(t, today, c.today.Date)
				require.Equal(t, tempo.White, c.today.State)
			}
			require.Equal(t, []string{tomorrow}, f.ledger.writes)
			require.Equal(t, StateIdle, f.o.State())
		})
	}
}

func TestCycleMissingTomorrow(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	f.ledger.value = yesterday
	f.feed.snap = tempo.Snapshot{today: day(t, today, tempo.Blue)}

	require.Equal(t, OutcomeNotPublished, f.o.Cycle(context.Background()))
	require.Zero(t, f.msg.count())
	require.Zero(t, f.pub.count())
	require.Empty(t, f.ledger.writes)
	require.Equal(t, yesterday, f.ledger.value)
}

func TestCycleMissingTodayIsTolerated(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	f.feed.snap = tempo.Snapshot{tomorrow: day(t, tomorrow, tempo.Blue)}

	require.Equal(t, OutcomeDispatched, f.o.Cycle(context.Background()))
	require.Equal(t, 1, f.msg.count())
	require.Nil(t, f.msg.calls[0].today)
	require.Equal(t, []string{tomorrow}, f.ledger.writes)
}

func TestCycleFetchFailureLeavesLedger(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	f.ledger.value = yesterday
	f.feed.err = tempo.ErrUnavailable

	require.Equal(t, OutcomeFetchFailed, f.o.Cycle(context.Background()))
	require.Zero(t, f.msg.count())
	require.Empty(t, f.ledger.writes)

	// Next tick retries unconditionally.
	f.feed.err = nil
	require.Equal(t, OutcomeDispatched, f.o.Cycle(context.Background()))
	require.Equal(t, 2, f.feed.calls)
}

func TestCycleLedgerReadErrorMeansNeverAnnounced(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	f.ledger.value = tomorrow
	f.ledger.readErr = errors.New("permission denied")

	require.Equal(t, OutcomeDispatched, f.o.Cycle(context.Background()))
	require.Equal(t, 1, f.msg.count())
	require.Equal(t, 1, f.pub.count())
}

func TestCycleLedgerWriteErrorStillDispatched(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	f.ledger.writeErr = errors.New("read-only file system")

	require.Equal(t, OutcomeDispatched, f.o.Cycle(context.Background()))
	require.Equal(t, []string{tomorrow}, f.ledger.writes)

	// Uncommitted: the next tick announces again.
	require.Equal(t, OutcomeDispatched, f.o.Cycle(context.Background()))
	require.Equal(t, 2, f.msg.count())
}

func TestCycleSinkIsolation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		failed string
		setup  func(s *fakeSink)
	}{
		{name: "message error", failed: "msg", setup: func(s *fakeSink) { s.err = sink.ErrUnavailable }},
		{name: "publish error", failed: "pub", setup: func(s *fakeSink) { s.err = sink.ErrUnavailable }},
		{name: "message panic", failed: "msg", setup: func(s *fakeSink) { s.panic = true }},
		{name: "publish panic", failed: "pub", setup: func(s *fakeSink) { s.panic = true }},
		{name: "message hang", failed: "msg", setup: func(s *fakeSink) { s.hang = true }},
		{name: "publish waits on ctx", failed: "pub", setup: func(s *fakeSink) { s.wait = true }},
	}
	for _, tt := range tests {
		tt := tt
		for _, parallel := range []bool{false, true} {
			parallel := parallel
			name := tt.name
			if parallel {
				name += "/parallel"
			}
			t.Run(name, func(t *testing.T) {
				t.Parallel()
				f := newFixture(t, Config{SinkTimeout: 100 * time.Millisecond, Parallel: parallel})
				if tt.failed == "msg" {
					tt.setup(f.msg)
				} else {
					tt.setup(f.pub)
				}

				require.Equal(t, OutcomeDispatched, f.o.Cycle(context.Background()))
				require.Equal(t, 1, f.msg.count())
				require.Equal(t, 1, f.pub.count())
				require.Equal(t, []string{tomorrow}, f.ledger.writes, "commit happens even when a sink fails")
			})
		}
	}
}

func TestCycleWithoutSinksStillCommits(t *testing.T) {
	t.Parallel()
	feed := &fakeFeed{snap: fullSnapshot(t)}
	led := &fakeLedger{}
	o := New(Config{}, feed, led, nil, nil, logx.Nop())
	o.now = func() time.Time { return fixedNow }

	require.Equal(t, OutcomeDispatched, o.Cycle(context.Background()))
	require.Equal(t, []string{tomorrow}, led.writes)
}

func TestCycleInterruptedDoesNotCommit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{SinkTimeout: time.Minute})
	f.msg.wait = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for f.msg.count() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
	}()

	require.Equal(t, OutcomeInterrupted, f.o.Cycle(ctx))
	require.Empty(t, f.ledger.writes)
}

func TestRunCyclesOnStartAndStops(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{Schedule: "1h", RunOnStart: true})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.o.Run(ctx) }()

	require.Eventually(t, func() bool { return f.pub.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	f.ledger.mu.Lock()
	defer f.ledger.mu.Unlock()
	require.Equal(t, []string{tomorrow}, f.ledger.writes)
}

func TestRunRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{Schedule: "whenever"})
	require.Error(t, f.o.Run(context.Background()))
}
