package autoscaler

import (
	"fmt"
	"sync"
)

// UnitNamer hands out sequential unit names for the lifetime of one controller.
// Names are unique within the controller, not across processes.
type UnitNamer struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewUnitNamer creates a namer starting at <prefix>-0
func NewUnitNamer(prefix string) *UnitNamer {
	return &UnitNamer{prefix: prefix}
}

// Next returns the next name and advances the counter
func (n *UnitNamer) Next() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	name := fmt.Sprintf("%s-%d", n.prefix, n.next)
	n.next++
	return name
}

// Peek returns the index the next name will use
func (n *UnitNamer) Peek() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next
}
