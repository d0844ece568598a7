// Package remote delivers queries submitted from outside the interactive terminal.
//
// Invariants:
//   - Poll dequeues and reads the read token under one lock, so a query arriving after
//     Poll returned always cancels the token the caller holds.
//   - Ready is closed once the connection attempt finished, successfully or not.
package remote

import (
	"context"
)

// Channel is a source of remote queries
type Channel interface {
	// Ready is closed when the channel finished connecting
	Ready() <-chan struct{}

	// Poll returns the next pending query without blocking. When none is pending it
	// returns the token that is cancelled as soon as one arrives.
	Poll() (query string, ok bool, readToken context.Context)

	Close() error
}

// Nop is a channel that never delivers anything
type Nop struct{}

var closedReady = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (Nop) Ready() <-chan struct{} { return closedReady }

func (Nop) Poll() (string, bool, context.Context) { return "", false, context.Background() }

func (Nop) Close() error { return nil }
