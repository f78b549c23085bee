package registry

import (
	"fmt"
	"sync"
)

// certLocker serializes transition processing per certificate hash. A mutex
// is created the first time a hash is seen and retained for the life of the
// process, so the map grows with the number of distinct certificates handled.
type certLocker struct {
	locks sync.Map
}

// Lock acquires the mutex for hash, creating it on first use.
func (cl *certLocker) Lock(hash string) {
	mu, _ := cl.locks.LoadOrStore(hash, new(sync.Mutex))
	mu.(*sync.Mutex).Lock()
}

// Unlock releases the mutex for hash. It panics if the hash was never
// locked.
func (cl *certLocker) Unlock(hash string) {
	mu, ok := cl.locks.Load(hash)
	if !ok {
		panic(fmt.Sprintf("registry: unlock of never-locked certificate %q", hash))
	}
	mu.(*sync.Mutex).Unlock()
}
