// Package app wires configuration into the running notifier: logging,
// ledger, feed, sinks, poll loop and the observability server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"tempobot/internal/config"
	"tempobot/internal/ledger"
	"tempobot/internal/metrics"
	"tempobot/internal/observability"
	"tempobot/internal/orchestrator"
	"tempobot/internal/runtime/supervisor"
	"tempobot/internal/sink"
	"tempobot/internal/tempo"
	logx "tempobot/pkg/logx"
)

type App struct {
	cfg  *config.Config
	log  logx.Logger
	logs *logx.Service

	ledger ledger.Ledger
	feed   *tempo.Feed
	sinks  []sink.Sink
	orch   *orchestrator.Orchestrator
	obs    *observability.Server

	sup *supervisor.Supervisor

	// notify reports lifecycle to systemd; a no-op outside a unit.
	notify func(state string)
}

// New builds every component from cfg. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logSvc, root := logx.New(mapLogConfig(cfg), nil)
	log := root.With(logx.String("comp", "app"))
	log.Info("configuration loaded", config.Summarize(cfg)...)

	a := &App{cfg: cfg, log: log, logs: logSvc, notify: sdNotify}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	var sinks []sink.Sink
	if cfg.TelegramEnabled() {
		tc, err := mapTelegramConfig(cfg)
		if err != nil {
			return nil, err
		}
		tg, err := sink.NewTelegram(tc, root.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		logSvc.SetForwarder(tg)
		sinks = append(sinks, tg)
	}
	if cfg.MQTTEnabled() {
		mc, err := mapMQTTConfig(cfg)
		if err != nil {
			return nil, err
		}
		mq, err := sink.NewMQTT(mc, root.With(logx.String("comp", "mqtt")))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, mq)
	}
	if len(sinks) == 0 {
		log.Warn("telegram and mqtt are both disabled; days will be recorded but announced nowhere")
	}
	a.sinks = sinks

	fc, err := mapFeedConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.feed = tempo.NewFeed(fc, root.With(logx.String("comp", "feed")))

	lc, err := mapLedgerConfig(cfg)
	if err != nil {
		return nil, err
	}
	led, err := ledger.Open(ctx, lc, root.With(logx.String("comp", "ledger")))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.ledger = led

	pc, err := mapPollConfig(cfg)
	if err != nil {
		return nil, err
	}

	var rec metrics.Recorder = metrics.NoopRecorder{}
	oc := mapObservabilityConfig(cfg)
	var prom *metrics.PrometheusRecorder
	if oc.Addr != "" {
		prom = metrics.NewPrometheusRecorder(nil)
		rec = prom
	}

	a.orch = orchestrator.New(pc, a.feed, a.ledger, sinks, rec, root.With(logx.String("comp", "orchestrator")))

	if prom != nil {
		a.obs = observability.New(oc, prom.Handler(), func() map[string]string {
			return map[string]string{"state": a.orch.State().String()}
		}, root.With(logx.String("comp", "observability")))
	}

	ok = true
	return a, nil
}

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start launches the poll loop and, when configured, the observability
// server, then reports readiness to systemd.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	a.sup.GoRestart("poll.loop", a.orch.Run, supervisor.WithRestartBackoff(time.Second, time.Minute))
	if a.obs != nil {
		a.sup.GoRestart("observability.serve", a.obs.Serve,
			supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
			supervisor.WithMaxRestarts(10),
		)
	}

	a.notify(daemon.SdNotifyReady)
	a.log.Info("started", logx.Int("sinks", len(a.sinks)))
	return nil
}

// Stop cancels everything, waits for the loop to unwind within ctx, and
// releases the ledger and log outputs.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		a.close()
		return nil
	}
	a.notify(daemon.SdNotifyStopping)
	a.log.Info("stopping")

	err := a.sup.Stop(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		a.log.Warn("stop deadline reached; some goroutines are still running")
	}
	a.log.Info("stopped")
	a.close()
	return err
}

func (a *App) close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.log.Warn("ledger close failed", logx.Err(err))
		}
		a.ledger = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
}

func sdNotify(state string) {
	// (false, nil) when NOTIFY_SOCKET is unset.
	_, _ = daemon.SdNotify(false, state)
}

// Check fetches the feed once and prints what would be announced, without
// notifying anyone or touching the ledger.
func Check(ctx context.Context, cfg *config.Config, w io.Writer, now time.Time) error {
	logSvc, root := logx.New(mapLogConfig(cfg), nil)
	defer logSvc.Close()
	fc, err := mapFeedConfig(cfg)
	if err != nil {
		return err
	}
	feed := tempo.NewFeed(fc, root.With(logx.String("comp", "feed")))
	snap, err := feed.Fetch(ctx)
	if err != nil {
		return err
	}
	return report(w, snap, now)
}

func report(w io.Writer, snap tempo.Snapshot, now time.Time) error {
	now = now.UTC()
	todayKey := now.Format(tempo.DateLayout)
	tomorrowKey := now.AddDate(0, 0, 1).Format(tempo.DateLayout)

	var today, tomorrow *tempo.Day
	if d, ok := snap.Lookup(todayKey); ok {
		today = &d
	}
	if d, ok := snap.Lookup(tomorrowKey); ok {
		tomorrow = &d
	}

	if today == nil && tomorrow == nil {
		_, err := fmt.Fprintf(w, "no colour published for %s or %s\n", todayKey, tomorrowKey)
		return err
	}
	if _, err := fmt.Fprintln(w, strings.TrimSuffix(sink.Message(today, tomorrow, now), "\n")); err != nil {
		return err
	}
	if tomorrow == nil {
		_, err := fmt.Fprintf(w, "tomorrow (%s) not published yet\n", tomorrowKey)
		return err
	}
	_, err := fmt.Fprintf(w, "mqtt payload: %s\n", tomorrow.Payload())
	return err
}
