package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"tempobot/internal/tempo"
	logx "tempobot/pkg/logx"
)

const (
	DefaultMQTTPort     = 1883
	DefaultMQTTIdentity = "bot_tempo_rs"
	DefaultKeepAlive    = 5 * time.Second
)

type MQTTConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// Identity is the MQTT client id.
	Identity string
	Topic    string

	KeepAlive time.Duration
	// Timeout bounds connect/subscribe and, separately, the wait for the
	// publication round trip.
	Timeout time.Duration
}

// BrokerURL returns the paho broker address. A Host that already carries a
// scheme (tcp://, ssl://, ws://) is used as-is.
func (c MQTTConfig) BrokerURL() string {
	if strings.Contains(c.Host, "://") {
		return c.Host
	}
	return "tcp://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ackToken is the completion handle of a QoS 1 publish. paho's mqtt.Token
// satisfies it.
type ackToken interface {
	Done() <-chan struct{}
	Error() error
}

// session is one short-lived broker connection.
type session interface {
	Connect(ctx context.Context) error
	// Subscribe registers onMessage for deliveries on topic (QoS 0).
	Subscribe(ctx context.Context, topic string, onMessage func(topic string, payload []byte)) error
	// Publish sends payload at QoS 1; the token completes on PUBACK.
	Publish(topic string, payload []byte) ackToken
	Disconnect()
}

// MQTT publishes tomorrow's colour and waits until the broker both echoed the
// message back on the subscribed topic and acknowledged the publish.
type MQTT struct {
	cfg  MQTTConfig
	log  logx.Logger
	dial func(cfg MQTTConfig) session
}

func NewMQTT(cfg MQTTConfig, log logx.Logger) (*MQTT, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("mqtt host is empty")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("mqtt topic is empty")
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultMQTTPort
	}
	if strings.TrimSpace(cfg.Identity) == "" {
		cfg.Identity = DefaultMQTTIdentity
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &MQTT{cfg: cfg, log: log, dial: newPahoSession}, nil
}

func (m *MQTT) Name() string { return "mqtt" }
func (m *MQTT) Kind() Kind   { return Acknowledged }

func (m *MQTT) Notify(ctx context.Context, _ *tempo.Day, tomorrow tempo.Day) error {
	return m.publish(ctx, []byte(tomorrow.Payload()))
}

func (m *MQTT) publish(ctx context.Context, payload []byte) error {
	s := m.dial(m.cfg)
	defer s.Disconnect()

	cctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	if err := s.Connect(cctx); err != nil {
		return fmt.Errorf("%w: mqtt connect %s: %v", ErrUnavailable, m.cfg.BrokerURL(), err)
	}

	// Buffered and fed without blocking: the handler runs on paho's router and
	// may fire after we gave up.
	deliveries := make(chan []byte, 8)
	onMessage := func(topic string, p []byte) {
		if topic != m.cfg.Topic {
			return
		}
		select {
		case deliveries <- append([]byte(nil), p...):
		default:
		}
	}
	if err := s.Subscribe(cctx, m.cfg.Topic, onMessage); err != nil {
		return fmt.Errorf("%w: mqtt subscribe %q: %v", ErrUnavailable, m.cfg.Topic, err)
	}

	tok := s.Publish(m.cfg.Topic, payload)
	m.log.Debug("mqtt published, awaiting round trip", logx.String("topic", m.cfg.Topic))

	var rt roundTrip
	if err := rt.await(ctx, m.cfg.Timeout, payload, deliveries, tok); err != nil {
		return err
	}
	m.log.Info("mqtt publication confirmed", logx.String("topic", m.cfg.Topic))
	return nil
}

// roundTrip is the handshake state of one publication: the message must be
// seen coming back on the subscription and the publish must be acknowledged.
// The two events may arrive in either order.
type roundTrip struct {
	seenDelivery bool
	seenAck      bool
}

func (r *roundTrip) complete() bool { return r.seenDelivery && r.seenAck }

// await drives the state until complete, the token fails, timeout elapses or
// ctx ends.
func (r *roundTrip) await(ctx context.Context, timeout time.Duration, payload []byte, deliveries <-chan []byte, tok ackToken) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	ackDone := tok.Done()
	for !r.complete() {
		select {
		case p := <-deliveries:
			if bytes.Equal(p, payload) {
				r.seenDelivery = true
			}
		case <-ackDone:
			ackDone = nil
			if err := tok.Error(); err != nil {
				return fmt.Errorf("%w: mqtt publish: %v", ErrUnavailable, err)
			}
			r.seenAck = true
		case <-timer.C:
			return fmt.Errorf("%w: mqtt round trip timed out after %s (delivery=%t ack=%t)",
				ErrUnavailable, timeout, r.seenDelivery, r.seenAck)
		case <-ctx.Done():
			return fmt.Errorf("%w: mqtt: %v", ErrUnavailable, ctx.Err())
		}
	}
	return nil
}
