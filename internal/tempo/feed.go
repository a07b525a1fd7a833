package tempo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "tempobot/pkg/logx"
)

var (
	// ErrUnavailable covers timeouts, transport failures and non-2xx answers.
	ErrUnavailable = errors.New("tempo feed unavailable")
	// ErrMalformedResponse is returned when the body is not the expected shape.
	ErrMalformedResponse = errors.New("tempo feed response malformed")
)

const (
	DefaultURL       = "https://www.services-rte.com/cms/open_data/v1/tempo?season={season}"
	DefaultUserAgent = "curl/7.54.1"
	DefaultTimeout   = 5 * time.Second

	maxBody = 1 << 20
)

type FeedConfig struct {
	// URL may contain "{season}", replaced by the Tempo season of the
	// requested day (see Season).
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// Feed fetches day states from the RTE open-data endpoint.
type Feed struct {
	cfg  FeedConfig
	http *http.Client
	log  logx.Logger
	now  func() time.Time
}

func NewFeed(cfg FeedConfig, log logx.Logger) *Feed {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Feed{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log, now: time.Now}
}

type feedResponse struct {
	Values map[string]json.RawMessage `json:"values"`
}

// Fetch performs one request and returns a fresh snapshot. The season used is
// the one containing tomorrow (UTC), which is the day the caller cares about.
func (f *Feed) Fetch(ctx context.Context) (Snapshot, error) {
	url := f.URLFor(f.now().UTC().AddDate(0, 0, 1))

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	f.log.Debug("fetching tempo feed", logx.String("url", url))
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	snap, err := ParseSnapshot(body)
	if err != nil {
		return nil, err
	}
	f.log.Info("tempo feed fetched", logx.Int("entries", len(snap)))
	return snap, nil
}

// URLFor expands the configured URL template for the season containing day.
func (f *Feed) URLFor(day time.Time) string {
	return strings.ReplaceAll(f.cfg.URL, "{season}", Season(day))
}

// Season names the Tempo season containing t, e.g. "2024-2025" for any day
// from 2024-09-01 to 2025-08-31.
func Season(t time.Time) string {
	y := t.Year()
	if t.Month() < time.September {
		y--
	}
	return fmt.Sprintf("%d-%d", y, y+1)
}

// ParseSnapshot decodes a feed body. Entries with unknown labels, non-string
// values or invalid dates are dropped.
func ParseSnapshot(body []byte) (Snapshot, error) {
	var fr feedResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if fr.Values == nil {
		return nil, fmt.Errorf("%w: missing values object", ErrMalformedResponse)
	}

	snap := make(Snapshot, len(fr.Values))
	for date, raw := range fr.Values {
		var label string
		if err := json.Unmarshal(raw, &label); err != nil {
			continue
		}
		st, ok := ParseFeedLabel(label)
		if !ok {
			continue
		}
		d, err := NewDay(date, st)
		if err != nil {
			continue
		}
		snap[date] = d
	}
	return snap, nil
}
