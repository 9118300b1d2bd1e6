package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Bus is the control-API-to-orchestrator event channel (§4.12): publish an
// Envelope on a subject, subscribe to a subject with a handler. Two
// implementations satisfy it: NATSBus when --nats-url is set, localBus
// otherwise.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(subject string, handler func(Envelope)) error
	Close() error
}

// NATSBus wraps a NATS connection, mirroring the teacher's messaging.Client
// shape minus JetStream (this domain has no need for persisted streams —
// every intent is folded into the live event queue or dropped).
type NATSBus struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection tunables.
type Config struct {
	URL            string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// DefaultConfig returns sane reconnect tunables for the simulator's bus.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		Name:           "lpgdispatch",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  10,
		ConnectTimeout: 5 * time.Second,
	}
}

// NewNATSBus connects to the broker at cfg.URL.
func NewNATSBus(cfg Config) (*NATSBus, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	return &NATSBus{conn: conn, subs: make(map[string]*nats.Subscription)}, nil
}

// Publish marshals env and publishes it to env.Subject.
func (b *NATSBus) Publish(ctx context.Context, env Envelope) error {
	payload, err := envelopeJSON(env)
	if err != nil {
		return err
	}
	return b.conn.Publish(env.Subject, payload)
}

// Subscribe registers handler for every Envelope published on subject.
func (b *NATSBus) Subscribe(subject string, handler func(Envelope)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.subs[subject]; exists {
		return fmt.Errorf("already subscribed to %s", subject)
	}
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		env, err := decodeEnvelope(msg.Data)
		if err != nil {
			return
		}
		handler(env)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	b.subs[subject] = sub
	return nil
}

// Close drains subscriptions and closes the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for subject, sub := range b.subs {
		sub.Unsubscribe()
		delete(b.subs, subject)
	}
	b.conn.Close()
	return nil
}
