package sink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"tempobot/internal/tempo"
	logx "tempobot/pkg/logx"
)

const (
	DefaultTimeout = 5 * time.Second
	// DefaultRatePerSec stays under the Bot API per-chat limit.
	DefaultRatePerSec = 1
)

type TelegramConfig struct {
	Token  string
	ChatID string
	// APIURL overrides the Bot API base URL (tests, local bot API servers).
	APIURL  string
	Timeout time.Duration
	// RatePerSec caps sends to the chat, announcements and forwarded logs
	// together.
	RatePerSec int
}

// Telegram posts the French announcement to one chat.
type Telegram struct {
	cfg TelegramConfig
	bot *tele.Bot
	lim *rate.Limiter
	log logx.Logger
	now func() time.Time
}

// chatRecipient lets the chat id be either numeric or an @channel name.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, errors.New("telegram chat id is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = DefaultRatePerSec
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimSpace(cfg.APIURL),
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: cfg.Timeout},
		Offline: true, // no getMe round-trip; this bot never polls
	})
	if err != nil {
		return nil, err
	}
	lim := rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	return &Telegram{cfg: cfg, bot: b, lim: lim, log: log, now: time.Now}, nil
}

func (t *Telegram) Name() string { return "telegram" }
func (t *Telegram) Kind() Kind   { return BestEffort }

func (t *Telegram) Notify(ctx context.Context, today *tempo.Day, tomorrow tempo.Day) error {
	return t.send(ctx, Message(today, &tomorrow, t.now()))
}

// Forward implements logx.Forwarder so warnings reach the same chat.
func (t *Telegram) Forward(ctx context.Context, text string) error {
	return t.send(ctx, text)
}

// send performs one sendMessage call once the limiter allows it. telebot has
// no context support, so the call runs aside and ctx only bounds how long we
// wait for it.
func (t *Telegram) send(ctx context.Context, text string) error {
	if err := t.lim.Wait(ctx); err != nil {
		return fmt.Errorf("%w: telegram: rate limit: %v", ErrUnavailable, err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(chatRecipient(t.cfg.ChatID), text)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: telegram: %v", ErrUnavailable, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: telegram: %v", ErrUnavailable, ctx.Err())
	}
}

// Message builds the chat text: today's line, then tomorrow's. Either may be
// omitted.
func Message(today, tomorrow *tempo.Day, now time.Time) string {
	var b strings.Builder
	if today != nil {
		b.WriteString(today.RenderAt(now))
		b.WriteString("\n")
	}
	if tomorrow != nil {
		b.WriteString(tomorrow.RenderAt(now))
	}
	return b.String()
}
