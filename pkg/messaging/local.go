package messaging

import (
	"context"
	"encoding/json"
	"sync"
)

// localBus is the in-process fallback used when no broker URL is
// configured (§4.9, §4.12): same Bus interface, no network dependency, so
// the simulator runs with zero external processes.
type localBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(Envelope)
}

// NewLocalBus returns a Bus backed by an in-memory fan-out map.
func NewLocalBus() Bus {
	return &localBus{handlers: make(map[string][]func(Envelope))}
}

func (b *localBus) Publish(ctx context.Context, env Envelope) error {
	b.mu.RLock()
	handlers := append([]func(Envelope){}, b.handlers[env.Subject]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(env)
	}
	return nil
}

func (b *localBus) Subscribe(subject string, handler func(Envelope)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[subject] = append(b.handlers[subject], handler)
	return nil
}

func (b *localBus) Close() error { return nil }

func envelopeJSON(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
