package scheduler

import "sync"

// PortAllocator hands out increasing gateway ports. Each port comes with a
// slot number that the environment uses to offset its engine host ports.
type PortAllocator struct {
	mu   sync.Mutex
	next int
	slot int
}

// NewPortAllocator starts allocating at base.
func NewPortAllocator(base int) *PortAllocator {
	return &PortAllocator{next: base}
}

// Next returns the next unused port and its slot.
func (a *PortAllocator) Next() (port, slot int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	port, slot = a.next, a.slot
	a.next++
	a.slot++
	return port, slot
}
