package orchestrator

import "sync"

// keyedMutex serializes work per key within one run. Lock granularity is the
// external key, which is what pairs a record with its internal entity.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &sync.Mutex{}
		k.locks[key] = entry
	}
	k.mu.Unlock()

	entry.Lock()
	return entry.Unlock
}
