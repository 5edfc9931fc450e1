// Package ids issues small integer identifiers that are never shared by
// two live owners.
package ids

import "sort"

// Allocator hands out non-negative ids. It is not safe for concurrent use;
// the owner serializes access.
type Allocator struct {
	live map[int]struct{}
}

// NewAllocator returns an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{live: make(map[int]struct{})}
}

// Allocate returns preferred when it is non-negative and free, otherwise
// the smallest free id. The returned id is live until released.
func (a *Allocator) Allocate(preferred int) int {
	id := preferred
	if _, taken := a.live[id]; id < 0 || taken {
		id = 0
		for {
			if _, taken := a.live[id]; !taken {
				break
			}
			id++
		}
	}
	a.live[id] = struct{}{}
	return id
}

// Release makes id available again. Releasing a free id does nothing.
func (a *Allocator) Release(id int) {
	delete(a.live, id)
}

// Clear releases every id.
func (a *Allocator) Clear() {
	clear(a.live)
}

// Live reports whether id is currently allocated.
func (a *Allocator) Live(id int) bool {
	_, ok := a.live[id]
	return ok
}

// Len returns the number of live ids.
func (a *Allocator) Len() int {
	return len(a.live)
}

// IDs returns the live ids in ascending order.
func (a *Allocator) IDs() []int {
	out := make([]int, 0, len(a.live))
	for id := range a.live {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
