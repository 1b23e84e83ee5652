// File: pool/objpool.go
// Author: momentics <momentics@gmail.com>

package pool

import "sync"

// SyncPool is a typed sync.Pool with an optional reset hook run on Put.
type SyncPool[T any] struct {
	pool  sync.Pool
	reset func(T) (T, bool)
}

// NewSyncPool creates a pool that builds new objects with creator. reset,
// when non-nil, prepares an object for reuse and may reject it by returning
// false.
func NewSyncPool[T any](creator func() T, reset func(T) (T, bool)) *SyncPool[T] {
	sp := &SyncPool[T]{reset: reset}
	sp.pool.New = func() any { return creator() }
	return sp
}

// Get returns a pooled or newly created object.
func (sp *SyncPool[T]) Get() T {
	return sp.pool.Get().(T)
}

// Put hands obj back for reuse.
func (sp *SyncPool[T]) Put(obj T) {
	if sp.reset != nil {
		var ok bool
		if obj, ok = sp.reset(obj); !ok {
			return
		}
	}
	sp.pool.Put(obj)
}
