package analysis

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultCacheSize is the number of runs kept when none is configured.
const DefaultCacheSize = 16

// RunCache keeps the most recent analyses in memory so that overrides can
// re-evaluate a run without a new upload. The oldest entry is evicted when
// the cache is full.
type RunCache struct {
	mu    sync.Mutex
	size  int
	order []uuid.UUID
	runs  map[uuid.UUID]*Analysis
}

func NewRunCache(size int) *RunCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &RunCache{size: size, runs: make(map[uuid.UUID]*Analysis, size)}
}

// Put stores a or replaces the entry with the same ID.
func (c *RunCache) Put(a *Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.runs[a.ID]; ok {
		c.runs[a.ID] = a
		return
	}
	if len(c.order) >= c.size {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.runs, oldest)
	}
	c.order = append(c.order, a.ID)
	c.runs[a.ID] = a
}

// Get returns the analysis with id, if cached.
func (c *RunCache) Get(id uuid.UUID) (*Analysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.runs[id]
	return a, ok
}

// Len returns the number of cached runs.
func (c *RunCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runs)
}
