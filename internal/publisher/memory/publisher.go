// Package memory contains an in-memory publisher for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/publisher"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []publisher.Event
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, evt publisher.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns a copy of the recorded events.
func (p *Publisher) Events() []publisher.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]publisher.Event, len(p.events))
	copy(out, p.events)
	return out
}
