package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/adamscao/protocolreg/internal/models"
)

// ErrQueueFull is returned when an entry cannot be queued for publication
var ErrQueueFull = errors.New("event queue full")

// ErrClosed is returned by Publish after Close
var ErrClosed = errors.New("event publisher closed")

// Async queues entries and publishes them from a background goroutine, so a
// slow or unreachable broker never delays the caller.
type Async struct {
	next    Publisher
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *models.LogEntry
	done   chan struct{}
}

// NewAsync wraps next with a queue of size entries. Each delivery is bounded
// by timeout.
func NewAsync(next Publisher, size int, timeout time.Duration, logger *slog.Logger) *Async {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		next:    next,
		timeout: timeout,
		logger:  logger,
		queue:   make(chan *models.LogEntry, size),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues entry without blocking
func (a *Async) Publish(_ context.Context, entry *models.LogEntry) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- entry:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close delivers the entries already queued, then closes the wrapped publisher
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}

func (a *Async) run() {
	defer close(a.done)
	for entry := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Publish(ctx, entry); err != nil {
			a.logger.Warn("audit event publish failed",
				"audit_id", entry.ID, "action", entry.Action, "error", err)
		}
		cancel()
	}
}
