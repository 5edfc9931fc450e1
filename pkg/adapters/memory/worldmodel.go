package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

// WorldModel implements ports.WorldModel in memory.
// Safe for concurrent use.
type WorldModel struct {
	data map[string]any
	mu   sync.RWMutex
}

// NewWorldModel creates an empty in-memory world model.
func NewWorldModel() *WorldModel {
	return &WorldModel{
		data: make(map[string]any),
	}
}

// Get returns the value stored under key.
func (w *WorldModel) Get(ctx context.Context, key string) (any, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	v, ok := w.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	// Copy on read so the caller can't mutate stored maps by reference
	return domain.CloneValue(v), nil
}

// Set stores a copy of value under key.
func (w *WorldModel) Set(ctx context.Context, key string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data[key] = domain.CloneValue(value)
	return nil
}

// Delete removes key.
func (w *WorldModel) Delete(ctx context.Context, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.data, key)
	return nil
}

// Keys returns the stored keys in ascending order.
func (w *WorldModel) Keys(ctx context.Context) ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keys := make([]string, 0, len(w.data))
	for k := range w.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
