// Package worldmodel provides backends layered over a world model.
package worldmodel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

// Effect is one write recorded by an Overlay.
type Effect struct {
	Key     string `json:"key"`
	Value   any    `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

type slot struct {
	value   any
	deleted bool
}

type record struct {
	effect  Effect
	prev    slot
	hadPrev bool
}

// Overlay shadows a backend. Reads fall through to the base for keys the
// overlay has not touched; writes stay in the overlay until Commit and can
// be undone one by one. Safe for concurrent use.
type Overlay struct {
	base domain.Backend

	mu      sync.Mutex
	pending map[string]slot
	journal []record
}

// NewOverlay returns an empty overlay over base.
func NewOverlay(base domain.Backend) *Overlay {
	return &Overlay{
		base:    base,
		pending: make(map[string]slot),
	}
}

// Get returns the overlay value for key, or the base value.
func (o *Overlay) Get(ctx context.Context, key string) (any, error) {
	o.mu.Lock()
	s, ok := o.pending[key]
	o.mu.Unlock()
	if ok {
		if s.deleted {
			return nil, domain.ErrKeyNotFound
		}
		return domain.CloneValue(s.value), nil
	}
	if o.base == nil {
		return nil, domain.ErrKeyNotFound
	}
	return o.base.Get(ctx, key)
}

// Set records a write.
func (o *Overlay) Set(ctx context.Context, key string, value any) error {
	o.write(Effect{Key: key, Value: domain.CloneValue(value)})
	return nil
}

// Delete records a deletion.
func (o *Overlay) Delete(ctx context.Context, key string) error {
	o.write(Effect{Key: key, Deleted: true})
	return nil
}

func (o *Overlay) write(e Effect) {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev, had := o.pending[e.Key]
	o.journal = append(o.journal, record{effect: e, prev: prev, hadPrev: had})
	o.pending[e.Key] = slot{value: e.Value, deleted: e.Deleted}
}

// Undo reverts the latest recorded effect. It reports false when there is
// nothing left to undo.
func (o *Overlay) Undo() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.journal)
	if n == 0 {
		return false
	}
	last := o.journal[n-1]
	o.journal = o.journal[:n-1]
	if last.hadPrev {
		o.pending[last.effect.Key] = last.prev
	} else {
		delete(o.pending, last.effect.Key)
	}
	return true
}

// Rollback discards every recorded effect.
func (o *Overlay) Rollback() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.journal = nil
	clear(o.pending)
}

// Effects returns the recorded effects in the order they happened.
func (o *Overlay) Effects() []Effect {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Effect, len(o.journal))
	for i, r := range o.journal {
		out[i] = r.effect
	}
	return out
}

// Len returns the number of recorded effects.
func (o *Overlay) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.journal)
}

// Commit applies the final state of every touched key to the base and
// empties the overlay. Keys are applied in the order they were first written.
func (o *Overlay) Commit(ctx context.Context) error {
	if o.base == nil {
		return errors.New("overlay has no base to commit to")
	}

	o.mu.Lock()
	order := make([]string, 0, len(o.pending))
	seen := make(map[string]bool, len(o.pending))
	for _, r := range o.journal {
		if k := r.effect.Key; !seen[k] {
			seen[k] = true
			if _, ok := o.pending[k]; ok {
				order = append(order, k)
			}
		}
	}
	final := make(map[string]slot, len(o.pending))
	for k, s := range o.pending {
		final[k] = s
	}
	o.journal = nil
	clear(o.pending)
	o.mu.Unlock()

	for _, k := range order {
		s := final[k]
		var err error
		if s.deleted {
			err = o.base.Delete(ctx, k)
		} else {
			err = o.base.Set(ctx, k, s.value)
		}
		if err != nil {
			return fmt.Errorf("commit %q: %w", k, err)
		}
	}
	return nil
}
