// Package events carries session lifecycle notifications from the session
// store to the stores that cache per-user data.
package events

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/nextshape/internal/client/models"
)

// Kind identifies a session transition.
type Kind int

const (
	// SessionStarted follows a successful login.
	SessionStarted Kind = iota + 1
	// SessionEnded follows any teardown: logout, failed refresh, account deletion.
	SessionEnded
	// SessionRestored follows loading a persisted session at startup.
	SessionRestored
)

func (k Kind) String() string {
	switch k {
	case SessionStarted:
		return "session_started"
	case SessionEnded:
		return "session_ended"
	case SessionRestored:
		return "session_restored"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers. Identity is nil for SessionEnded.
type Event struct {
	Kind     Kind
	Identity *models.Identity
}

// Handler reacts to an event. It runs synchronously on the publisher's
// goroutine and must not publish.
type Handler func(ctx context.Context, e Event)

// Bus is a synchronous fan-out of session events. The zero value is ready to use.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for every subsequent event.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers e to all handlers in subscription order and returns after
// the last one has finished.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	hs := make([]Handler, len(b.handlers))
	copy(hs, b.handlers)
	b.mu.RUnlock()

	for _, h := range hs {
		h(ctx, e)
	}
}
