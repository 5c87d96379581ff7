package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// KeyLockRegistry maps cache keys to capacity-1 semaphores. A lock is created
// the first time its key is seen and is kept for the life of the process; the
// key space is bounded by the number of entity types and scopes.
type KeyLockRegistry struct {
	mu    sync.Mutex
	locks map[string]*keySemaphore
}

type keySemaphore struct {
	sem  *semaphore.Weighted
	held atomic.Bool
}

// KeyLock is a held lock for one key. Release is idempotent.
type KeyLock struct {
	key  string
	ks   *keySemaphore
	once sync.Once
}

// NewKeyLockRegistry creates an empty registry
func NewKeyLockRegistry() *KeyLockRegistry {
	return &KeyLockRegistry{
		locks: make(map[string]*keySemaphore),
	}
}

func (r *KeyLockRegistry) get(key string) *keySemaphore {
	r.mu.Lock()
	defer r.mu.Unlock()

	ks, ok := r.locks[key]
	if !ok {
		ks = &keySemaphore{sem: semaphore.NewWeighted(1)}
		r.locks[key] = ks
	}
	return ks
}

// Acquire blocks until the lock for key is held or ctx is done
func (r *KeyLockRegistry) Acquire(ctx context.Context, key string) (*KeyLock, error) {
	ks := r.get(key)
	if err := ks.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	ks.held.Store(true)
	return &KeyLock{key: key, ks: ks}, nil
}

// TryAcquire takes the lock for key if it is free. ok is false when another
// holder is in flight.
func (r *KeyLockRegistry) TryAcquire(key string) (lock *KeyLock, ok bool) {
	ks := r.get(key)
	if !ks.sem.TryAcquire(1) {
		return nil, false
	}
	ks.held.Store(true)
	return &KeyLock{key: key, ks: ks}, true
}

// InFlight reports whether the lock for key is currently held
func (r *KeyLockRegistry) InFlight(key string) bool {
	r.mu.Lock()
	ks, ok := r.locks[key]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return ks.held.Load()
}

// Keys returns every key the registry has seen, sorted
func (r *KeyLockRegistry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.locks))
	for k := range r.locks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key returns the locked key
func (l *KeyLock) Key() string {
	return l.key
}

// Release frees the lock. Calling it more than once is a no-op.
func (l *KeyLock) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.ks.held.Store(false)
		l.ks.sem.Release(1)
	})
}
