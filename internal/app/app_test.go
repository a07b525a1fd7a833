package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/stretchr/testify/require"

	"tempobot/internal/config"
	"tempobot/internal/tempo"
)

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		fmt.Fprintf(w, `{"values":{%q:"WHITE",%q:"RED"}}`,
			now.Format(tempo.DateLayout), now.AddDate(0, 0, 1).Format(tempo.DateLayout))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func quietConfig(t *testing.T, feedURL string) *config.Config {
	cfg := config.Default()
	off := false
	cfg.Telegram.Enabled = &off
	cfg.MQTT.Enabled = &off
	cfg.Feed.URL = feedURL
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "poll_history.txt")
	cfg.Poll.Schedule = "1h"
	cfg.Poll.RunOnStart = true
	cfg.Logging.Level = "error"
	return cfg
}

func TestAppRunsOneCycleAndStops(t *testing.T) {
	t.Parallel()
	srv := feedServer(t)
	cfg := quietConfig(t, srv.URL)
	cfg.Metrics.Addr = "127.0.0.1:0"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	var mu sync.Mutex
	var states []string
	a.notify = func(s string) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}

	require.NoError(t, a.Start(context.Background()))

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format(tempo.DateLayout)
	require.Eventually(t, func() bool {
		b, err := os.ReadFile(cfg.Ledger.Path)
		return err == nil && string(b) == tomorrow
	}, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))
	require.NoError(t, a.Err())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{daemon.SdNotifyReady, daemon.SdNotifyStopping}, states)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	cfg := quietConfig(t, "http://127.0.0.1:1")
	cfg.Poll.Schedule = "every now and then"
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewRejectsBadLedger(t *testing.T) {
	t.Parallel()
	cfg := quietConfig(t, "http://127.0.0.1:1")
	cfg.Ledger.Driver = "redis"
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestCheckPrintsAnnouncement(t *testing.T) {
	t.Parallel()
	srv := feedServer(t)
	cfg := quietConfig(t, srv.URL)

	var out bytes.Buffer
	require.NoError(t, Check(context.Background(), cfg, &out, time.Now()))
	s := out.String()
	require.Contains(t, s, "Aujourd'hui")
	require.Contains(t, s, "Demain")
	require.Contains(t, s, "'state' : 'ROUGE'")

	_, err := os.Stat(cfg.Ledger.Path)
	require.True(t, os.IsNotExist(err), "check must not touch the ledger")
}

func TestReport(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 12, 24, 9, 0, 0, 0, time.UTC)
	mk := func(date string, st tempo.State) tempo.Day {
		d, err := tempo.NewDay(date, st)
		require.NoError(t, err)
		return d
	}

	tests := []struct {
		name string
		snap tempo.Snapshot
		want []string
	}{
		{
			name: "both",
			snap: tempo.Snapshot{"2024-12-24": mk("2024-12-24", tempo.Blue), "2024-12-25": mk("2024-12-25", tempo.Red)},
			want: []string{"Aujourd'hui", "Demain", "mqtt payload: {'day' : '2024-12-25' , 'state' : 'ROUGE'}"},
		},
		{
			name: "tomorrow pending",
			snap: tempo.Snapshot{"2024-12-24": mk("2024-12-24", tempo.Blue)},
			want: []string{"Aujourd'hui", "tomorrow (2024-12-25) not published yet"},
		},
		{
			name: "nothing",
			snap: tempo.Snapshot{},
			want: []string{"no colour published for 2024-12-24 or 2024-12-25"},
		},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		require.NoError(t, report(&out, tt.snap, now), tt.name)
		for _, w := range tt.want {
			require.True(t, strings.Contains(out.String(), w), "%s: %q missing from %q", tt.name, w, out.String())
		}
	}
}
