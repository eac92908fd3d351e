// Package keymutex provides per-key mutual exclusion: at most one holder per
// key, later callers queue behind the current one with no timeout, and
// distinct keys are fully independent with no ordering guarantee between
// them.
package keymutex

import "sync"

// KeyedMutex serializes work per string key. Idle keys hold no memory; an
// entry exists only while some goroutine holds or waits on its key.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New returns an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until any current holder
// releases. The returned function releases the hold and must be called
// exactly once; callers typically defer it.
func (k *KeyedMutex) Lock(key string) (release func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
