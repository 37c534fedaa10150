package dedup

import (
	"errors"
	"sync"
)

var ErrAlreadyInProgress = errors.New("request already in progress for this payment")

// InFlight collapses concurrent duplicate submissions sharing a key into a
// single winner. It is process local; the persistent duplicate check against
// the store remains the authoritative guard across processes.
type InFlight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{keys: make(map[string]struct{})}
}

// Begin atomically marks the key as in flight. The check and the set happen
// under one lock so two concurrent callers can never both win.
func (f *InFlight) Begin(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.keys[key]; exists {
		return ErrAlreadyInProgress
	}
	f.keys[key] = struct{}{}
	return nil
}

// End releases the key. Callers must invoke it on every exit path, success or
// failure, typically via defer.
func (f *InFlight) End(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
}

// Len reports the number of keys currently in flight.
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}
