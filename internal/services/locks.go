package services

import (
	"context"
	"sync"
)

// KeyedLocks is a set of mutexes keyed by string. Entries exist only while a
// key is held or awaited.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is held or ctx ends. The returned func releases the key.
func (l *KeyedLocks) Lock(ctx context.Context, key string) (func(), error) {
	kl := l.acquireRef(key)
	select {
	case kl.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.sem
				l.releaseRef(key, kl)
			})
		}, nil
	case <-ctx.Done():
		l.releaseRef(key, kl)
		return nil, ctx.Err()
	}
}

// TryLock takes key only if it is free.
func (l *KeyedLocks) TryLock(key string) (func(), bool) {
	kl := l.acquireRef(key)
	select {
	case kl.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.sem
				l.releaseRef(key, kl)
			})
		}, true
	default:
		l.releaseRef(key, kl)
		return nil, false
	}
}

// held returns the number of keys currently held or awaited.
func (l *KeyedLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *KeyedLocks) acquireRef(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *KeyedLocks) releaseRef(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
