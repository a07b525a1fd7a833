package sink

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qosAtMostOnce  byte = 0
	qosAtLeastOnce byte = 1

	disconnectQuiesceMS = 250
)

type pahoSession struct {
	client mqtt.Client
}

func newPahoSession(cfg MQTTConfig) session {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(cfg.Identity).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.Timeout).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false)
	return &pahoSession{client: mqtt.NewClient(opts)}
}

func (s *pahoSession) Connect(ctx context.Context) error {
	return waitToken(ctx, s.client.Connect())
}

func (s *pahoSession) Subscribe(ctx context.Context, topic string, onMessage func(string, []byte)) error {
	tok := s.client.Subscribe(topic, qosAtMostOnce, func(_ mqtt.Client, m mqtt.Message) {
		onMessage(m.Topic(), m.Payload())
	})
	return waitToken(ctx, tok)
}

func (s *pahoSession) Publish(topic string, payload []byte) ackToken {
	return s.client.Publish(topic, qosAtLeastOnce, false, payload)
}

func (s *pahoSession) Disconnect() {
	if s.client.IsConnectionOpen() {
		s.client.Disconnect(disconnectQuiesceMS)
	}
}

func waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
