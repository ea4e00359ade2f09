// Package lifecycle tracks whether the relay is draining ahead of shutdown.
// While draining, new websocket connections are refused so the process can
// stop cleanly once existing sessions wind down.
package lifecycle

import "sync/atomic"

type Lifecycle struct {
	draining atomic.Bool
}

func New() *Lifecycle { return &Lifecycle{} }

// SetDraining flips the draining flag. Safe to call from any goroutine.
func (l *Lifecycle) SetDraining(v bool) { l.draining.Store(v) }

// Draining reports whether the relay is refusing new connections.
func (l *Lifecycle) Draining() bool { return l.draining.Load() }
