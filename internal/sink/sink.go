// Package sink delivers Tempo announcements to the outside world.
//
// Two channels exist: a Telegram chat (best-effort, one POST) and an MQTT
// topic (acknowledged, waits for its own publication to come back).
package sink

import (
	"context"
	"errors"

	"tempobot/internal/tempo"
)

// ErrUnavailable wraps every transport-level failure of a sink.
var ErrUnavailable = errors.New("sink unavailable")

// Kind tells how much a sink guarantees once Notify returns nil.
type Kind int

const (
	// BestEffort sinks fire one request and do not wait for confirmation.
	BestEffort Kind = iota
	// Acknowledged sinks only succeed after a protocol-level confirmation.
	Acknowledged
)

func (k Kind) String() string {
	if k == Acknowledged {
		return "acknowledged"
	}
	return "best_effort"
}

// Sink is one notification channel. today is optional; tomorrow is the day
// being announced. Implementations must honour ctx.
type Sink interface {
	Name() string
	Kind() Kind
	Notify(ctx context.Context, today *tempo.Day, tomorrow tempo.Day) error
}
