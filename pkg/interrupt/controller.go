// Package interrupt turns operator interrupts into generation-scoped cancellation.
//
// Each generation owns one context. An interrupt cancels the current generation and
// installs a fresh one, so an operation that starts afterwards is never pre-cancelled.
// Suspendable operations must capture Token() at their own start.
package interrupt

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/rs/zerolog"
)

// Controller is the process-wide cancellation source
type Controller struct {
	mu         sync.Mutex
	parent     context.Context
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64

	signals  chan os.Signal
	done     chan struct{}
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
	logger   zerolog.Logger
}

// New creates a controller whose generations derive from parent
func New(parent context.Context, logger zerolog.Logger) *Controller {
	if parent == nil {
		parent = context.Background()
	}
	c := &Controller{
		parent:  parent,
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
		logger:  logger.With().Str("component", "interrupt").Logger(),
	}
	c.ctx, c.cancel = context.WithCancel(parent)
	return c
}

// Token returns the context of the current generation
func (c *Controller) Token() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Generation returns the current generation number
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Interrupt cancels the current generation and installs the next one
func (c *Controller) Interrupt() {
	c.mu.Lock()
	cancel := c.cancel
	c.ctx, c.cancel = context.WithCancel(c.parent)
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	cancel()
	c.logger.Debug().Uint64("generation", gen).Msg("Interrupt received, generation advanced")
}

// Start intercepts os.Interrupt so it cancels the current generation instead of
// terminating the process
func (c *Controller) Start() {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.started {
		return
	}
	c.started = true

	signal.Notify(c.signals, os.Interrupt)
	go c.loop()
}

func (c *Controller) loop() {
	for {
		select {
		case <-c.signals:
			c.Interrupt()
		case <-c.done:
			return
		}
	}
}

// Stop restores default signal handling and cancels the current generation
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		signal.Stop(c.signals)
		close(c.done)

		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		cancel()
	})
}
