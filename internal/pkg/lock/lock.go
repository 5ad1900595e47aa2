// Package lock provides per-channel locking for game-mutating operations.
//
// All game state is scoped to a (space, channel) pair, so channels never
// contend with each other. Within a channel the lock serializes guess
// handling and settlement; the database win-lock remains the authoritative
// single-winner guard and this lock is never held across chain calls.
package lock

import "sync"

// ChannelLock provides per-channel mutual exclusion keyed by an opaque
// channel key string.
type ChannelLock struct {
	locks sync.Map // map[string]*sync.Mutex
}

// NewChannelLock creates a new ChannelLock instance.
func NewChannelLock() *ChannelLock {
	return &ChannelLock{}
}

func (cl *ChannelLock) getLock(key string) *sync.Mutex {
	if v, ok := cl.locks.Load(key); ok {
		return v.(*sync.Mutex)
	}
	v, _ := cl.locks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Lock acquires the lock for a channel key.
func (cl *ChannelLock) Lock(key string) {
	cl.getLock(key).Lock()
}

// Unlock releases the lock for a channel key.
func (cl *ChannelLock) Unlock(key string) {
	if v, ok := cl.locks.Load(key); ok {
		v.(*sync.Mutex).Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (cl *ChannelLock) TryLock(key string) bool {
	return cl.getLock(key).TryLock()
}

// WithLock executes fn while holding the channel's lock.
func (cl *ChannelLock) WithLock(key string, fn func() error) error {
	cl.Lock(key)
	defer cl.Unlock(key)
	return fn()
}
