package ingest

import "sync"

// keyedMutex serialises work on the same key while letting different keys
// proceed in parallel.
type keyedMutex struct {
	cond *sync.Cond
	set  map[string]struct{}
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		cond: sync.NewCond(new(sync.Mutex)),
		set:  make(map[string]struct{}),
	}
}

func (km *keyedMutex) Lock(key string) {
	km.cond.L.Lock()
	defer km.cond.L.Unlock()
	for km.locked(key) {
		km.cond.Wait()
	}
	km.set[key] = struct{}{}
}

func (km *keyedMutex) Unlock(key string) {
	km.cond.L.Lock()
	defer km.cond.L.Unlock()
	delete(km.set, key)
	km.cond.Broadcast()
}

func (km *keyedMutex) locked(key string) bool {
	_, ok := km.set[key]
	return ok
}
