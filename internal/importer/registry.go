package importer

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Target)
	registryMu sync.RWMutex
)

// Register adds an import target to the registry.
// Panics if a target with the same entity key is already registered.
func Register(t Target) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[t.Entity]; exists {
		panic(fmt.Sprintf("import target already registered: %s", t.Entity))
	}

	registry[t.Entity] = t
}

// Get returns an import target by entity key.
// Returns false if not found.
func Get(entity string) (Target, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	t, ok := registry[entity]
	return t, ok
}

// All returns all registered targets, sorted by entity key.
func All() []Target {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Target, 0, len(registry))
	for _, t := range registry {
		result = append(result, t)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Entity < result[j].Entity
	})

	return result
}

// TargetCount returns the number of registered targets.
func TargetCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
