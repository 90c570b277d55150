package dispatcher

import (
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/garyjia/hookmanager/internal/domain/hook"
)

// implementationCache memoizes resolved handler lists per canonical event
// name. Concurrent misses on one key resolve once; a resolution that
// started before a reset is never stored after it.
type implementationCache struct {
	mu         sync.RWMutex
	entries    map[string][]hook.Implementation
	generation uint64
	group      singleflight.Group
}

func newImplementationCache() *implementationCache {
	return &implementationCache{
		entries: make(map[string][]hook.Implementation),
	}
}

// get returns the cached list for key, filling it on a miss
func (c *implementationCache) get(key string, fill func() []hook.Implementation) []hook.Implementation {
	c.mu.RLock()
	impls, ok := c.entries[key]
	generation := c.generation
	c.mu.RUnlock()

	if ok {
		return impls
	}

	flightKey := strconv.FormatUint(generation, 10) + ":" + key
	v, _, _ := c.group.Do(flightKey, func() (interface{}, error) {
		resolved := fill()

		c.mu.Lock()
		if c.generation == generation {
			c.entries[key] = resolved
		}
		c.mu.Unlock()

		return resolved, nil
	})

	return v.([]hook.Implementation)
}

// reset drops every entry
func (c *implementationCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string][]hook.Implementation)
	c.generation++
}

// size returns the number of memoized event names
func (c *implementationCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// resolve collects the definitions declaring canonical and orders them by
// descending priority. Equal priorities keep catalog order.
func resolve(defs []hook.Definition, canonical string) []hook.Implementation {
	impls := make([]hook.Implementation, 0, len(defs))
	for _, def := range defs {
		priority, ok := def.Priority(canonical)
		if !ok {
			continue
		}
		impls = append(impls, hook.Implementation{
			ID:       def.ID,
			Priority: priority,
		})
	}

	sort.SliceStable(impls, func(i, j int) bool {
		return impls[i].Priority > impls[j].Priority
	})

	return impls
}
