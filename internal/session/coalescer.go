package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gauthierbraillon/feedtriage/internal/clock"
)

// ErrClosed is returned by Wait when the coalescer is closed with work still pending.
var ErrClosed = errors.New("save coalescer closed")

// SaveFunc persists the current state. It is never called concurrently.
type SaveFunc func(ctx context.Context) error

// CoalescerConfig tunes the save scheduling.
type CoalescerConfig struct {
	Debounce       time.Duration
	BusyBackoff    time.Duration
	FailureBackoff time.Duration

	// OnDirty is called with true when unsaved changes appear and with false
	// once they are persisted. It runs with the coalescer lock held and must
	// not call back into the coalescer.
	OnDirty func(dirty bool)

	Clock  clock.Clock
	Logger *slog.Logger
}

// DefaultCoalescerConfig returns the stock timings.
func DefaultCoalescerConfig() CoalescerConfig {
	return CoalescerConfig{
		Debounce:       time.Second,
		BusyBackoff:    100 * time.Millisecond,
		FailureBackoff: 5 * time.Second,
	}
}

// Stats is a point-in-time view of the coalescer.
type Stats struct {
	Pending             int
	Writing             bool
	Dirty               bool
	Writes              int
	Failures            int
	ConsecutiveFailures int
}

// Coalescer collapses bursts of save requests into single writes and
// guarantees at most one write is in flight. Every request is eventually
// followed by a write that includes it.
type Coalescer struct {
	save   SaveFunc
	cfg    CoalescerConfig
	clock  clock.Clock
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	pending     int
	writing     bool
	dirty       bool
	closed      bool
	writes      int
	failures    int
	consecutive int
	changed     chan struct{}
}

// NewCoalescer creates a coalescer around save.
func NewCoalescer(save SaveFunc, cfg CoalescerConfig) *Coalescer {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coalescer{
		save:    save,
		cfg:     cfg,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
		changed: make(chan struct{}),
	}
}

// RequestSave records that the state changed and schedules a save.
func (c *Coalescer) RequestSave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.pending++
	if c.pending == 1 {
		c.setDirtyLocked(true)
	}
	c.clock.AfterFunc(c.cfg.Debounce, c.attemptSave)
}

func (c *Coalescer) attemptSave() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.writing {
		c.clock.AfterFunc(c.cfg.BusyBackoff, c.attemptSave)
		c.mu.Unlock()
		return
	}
	if c.pending == 0 {
		c.mu.Unlock()
		return
	}
	c.pending--
	if c.pending > 0 {
		// A later request owns the write.
		c.mu.Unlock()
		return
	}
	c.writing = true
	c.notifyLocked()
	c.mu.Unlock()

	err := c.save(c.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.writing = false
	if err != nil {
		c.failures++
		c.consecutive++
		if c.closed {
			c.notifyLocked()
			return
		}
		// Keep the failed write outstanding; the retry consumes it.
		c.pending++
		c.logger.Error("Failed to save state, retrying",
			"error", err,
			"consecutive_failures", c.consecutive,
			"retry_in", c.cfg.FailureBackoff)
		c.clock.AfterFunc(c.cfg.FailureBackoff, c.attemptSave)
		c.notifyLocked()
		return
	}

	c.writes++
	c.consecutive = 0
	if c.pending == 0 {
		c.setDirtyLocked(false)
	}
	c.notifyLocked()
}

func (c *Coalescer) setDirtyLocked(dirty bool) {
	if c.dirty == dirty {
		return
	}
	c.dirty = dirty
	if c.cfg.OnDirty != nil {
		c.cfg.OnDirty(dirty)
	}
}

func (c *Coalescer) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// Dirty reports whether there are changes not yet persisted.
func (c *Coalescer) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Stats returns the current counters.
func (c *Coalescer) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Pending:             c.pending,
		Writing:             c.writing,
		Dirty:               c.dirty,
		Writes:              c.writes,
		Failures:            c.failures,
		ConsecutiveFailures: c.consecutive,
	}
}

// Wait blocks until every requested save has been written, the context is
// done, or the coalescer is closed.
func (c *Coalescer) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.pending == 0 && !c.writing && !c.dirty {
			c.mu.Unlock()
			return nil
		}
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops all scheduling. Outstanding timers become no-ops and an
// in-flight save sees its context cancelled.
func (c *Coalescer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	c.notifyLocked()
}
