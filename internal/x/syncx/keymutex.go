package syncx

import (
	"context"
	"sync"
)

// UnlockFunc is a function used to unlock a previously locked key.
type UnlockFunc func()

// KeyMutex is a set of context-aware mutexes addressed by a string key.
//
// The zero value is ready to use. Mutexes are created on demand and discarded
// once there are no more pending or successful calls to Lock() for their key.
type KeyMutex struct {
	m     sync.Mutex
	locks map[string]*keyLock
}

// keyLock is the mutex for a single key.
type keyLock struct {
	guard chan struct{} // buffered; send = lock, receive = unlock
	refs  int           // guarded by KeyMutex.m
}

// Lock acquires an exclusive lock on k.
//
// It blocks until the lock is acquired or ctx is canceled. The returned unlock
// function must be called to release the lock; it is safe to call more than
// once.
func (km *KeyMutex) Lock(ctx context.Context, k string) (UnlockFunc, error) {
	l := km.acquire(k)

	select {
	case <-ctx.Done():
		km.release(k, l)
		return nil, ctx.Err()

	case l.guard <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.guard
				km.release(k, l)
			})
		}, nil
	}
}

// acquire returns the lock for k, creating it if necessary, and registers the
// caller as a reference.
func (km *KeyMutex) acquire(k string) *keyLock {
	km.m.Lock()
	defer km.m.Unlock()

	if km.locks == nil {
		km.locks = map[string]*keyLock{}
	}

	l, ok := km.locks[k]
	if !ok {
		l = &keyLock{
			guard: make(chan struct{}, 1),
		}
		km.locks[k] = l
	}

	l.refs++

	return l
}

// release removes a reference to l, discarding it when there are none left.
func (km *KeyMutex) release(k string, l *keyLock) {
	km.m.Lock()
	defer km.m.Unlock()

	l.refs--

	if l.refs == 0 {
		delete(km.locks, k)
	}
}
