package layout

import (
	"context"
	"sync"

	"github.com/matzehuels/archdiagram/pkg/graph"
)

// Ticket identifies one layout request issued by a [Tracker].
type Ticket uint64

// Tracker holds the latest positioned graph for one view and orders
// concurrent layout requests. A result is applied only if its request was
// issued after the last applied one; older results arriving late are
// discarded. A failed request records its error but leaves the previous
// graph in place.
type Tracker struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
	current graph.Graph
	has     bool
	err     error
}

// Begin issues a ticket for a new request.
func (t *Tracker) Begin() Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issued++
	return Ticket(t.issued)
}

// Complete reports the outcome of the request identified by tk. It returns
// false when the outcome was discarded because a newer request already
// completed.
func (t *Tracker) Complete(tk Ticket, g graph.Graph, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(tk) <= t.applied {
		return false
	}
	t.applied = uint64(tk)
	t.err = err
	if err == nil {
		t.current = g
		t.has = true
	}
	return true
}

// Current returns the last successfully applied graph.
func (t *Tracker) Current() (graph.Graph, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.has
}

// Err returns the error of the most recently applied request, or nil if it
// succeeded.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Layout runs engine under a fresh ticket and applies the outcome. The
// returned graph is the tracker's current graph afterwards, which is the
// previous graph when the request failed or was superseded.
func (t *Tracker) Layout(ctx context.Context, engine Engine, g graph.Graph, opts Options) (graph.Graph, bool, error) {
	tk := t.Begin()
	positioned, err := engine.Layout(ctx, g, opts)
	applied := t.Complete(tk, positioned, err)
	current, _ := t.Current()
	return current, applied, err
}
