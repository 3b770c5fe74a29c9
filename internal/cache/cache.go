// Package cache provides the process-scoped memoization store shared by
// resolution calls.
//
// A Cache is an explicit value: there is no package-level instance. Callers
// that want several resolutions to share file reads and plugin lookups pass
// the same *Cache to each of them; callers that don't, construct a fresh one.
// Entries are inserted on first computation and never evicted.
package cache

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache holds the five independent tables consulted during resolution.
type Cache struct {
	// DependencyHashes maps a resolved plugin/preset file to its content digest.
	DependencyHashes *Table[string]

	// FileExistence maps a path to whether it exists.
	FileExistence *Table[bool]

	// Files maps a configuration file path to its raw content.
	Files *Table[[]byte]

	// PluginsAndPresets maps a directory to the references resolved from it.
	// The nested table maps "kind:reference" to an absolute path.
	PluginsAndPresets *Table[*Table[string]]

	// SourceHashes maps a configuration file path to its content digest.
	SourceHashes *Table[string]
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		DependencyHashes:  NewTable[string](),
		FileExistence:     NewTable[bool](),
		Files:             NewTable[[]byte](),
		PluginsAndPresets: NewTable[*Table[string]](),
		SourceHashes:      NewTable[string](),
	}
}

// Resolutions returns the per-directory resolution table for dir, creating it
// on first use.
func (c *Cache) Resolutions(dir string) *Table[string] {
	return c.PluginsAndPresets.GetOrCreate(dir, NewTable[string])
}

// Table is a string-keyed map safe for concurrent use. Loads of the same key
// are collapsed into a single call.
type Table[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
	group   singleflight.Group
}

// NewTable creates an empty Table.
func NewTable[V any]() *Table[V] {
	return &Table[V]{entries: make(map[string]V)}
}

// Get returns the entry for key and whether it was present.
func (t *Table[V]) Get(key string) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[key]
	return v, ok
}

// Has reports whether key has an entry.
func (t *Table[V]) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// Set stores value under key, replacing any previous entry.
func (t *Table[V]) Set(key string, value V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = value
}

// Len returns the number of entries.
func (t *Table[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Keys returns all keys in sorted order.
func (t *Table[V]) Keys() []string {
	t.mu.RLock()
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	t.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// GetOrCreate returns the entry for key, storing the result of create if the
// key is absent.
func (t *Table[V]) GetOrCreate(key string, create func() V) V {
	if v, ok := t.Get(key); ok {
		return v
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.entries[key]; ok {
		return v
	}
	v := create()
	t.entries[key] = v
	return v
}

// Load returns the entry for key, computing it with fn on a miss.
//
// Concurrent Loads of the same missing key share one call to fn. A successful
// result is stored; an error is returned to every waiter and nothing is
// stored, so a later Load tries again.
func (t *Table[V]) Load(key string, fn func() (V, error)) (V, error) {
	if v, ok := t.Get(key); ok {
		return v, nil
	}

	res, err, _ := t.group.Do(key, func() (interface{}, error) {
		// Another caller may have finished between Get and Do.
		if v, ok := t.Get(key); ok {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		t.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}
