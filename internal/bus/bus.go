package bus

import (
	"log/slog"
	"sync"
	"time"

	"captionbot/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based event queue between the platform
// listeners (stream, webhook) and the router.
type InMemoryBus struct {
	events  chan domain.Event
	mu      sync.RWMutex
	closed  bool
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		events:  make(chan domain.Event, bufferSize),
		timeout: publishTimeout,
		logger:  logger,
	}
}

// Publish enqueues ev. Blocks up to publishTimeout if the bus is full, then drops.
func (b *InMemoryBus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus", "kind", ev.Kind)
		return
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}

	select {
	case b.events <- ev:
	default:
		b.logger.Warn("event bus full, waiting...", "kind", ev.Kind)
		timer := time.NewTimer(b.timeout)
		defer timer.Stop()
		select {
		case b.events <- ev:
			b.logger.Info("event delivered after wait", "kind", ev.Kind)
		case <-timer.C:
			b.logger.Error("event dropped: bus full", "kind", ev.Kind, "waited", b.timeout)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.Event {
	return b.events
}

// Close stops accepting events and closes the subscription channel. Safe to call twice.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.events)
	}
}
