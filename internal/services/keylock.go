package services

import "sync"

// KeyedLock serializes pipeline work per resource so two concurrent
// process calls for the same video or book cannot interleave their
// delete/rewrite phases. Entries are refcounted and dropped at zero, so
// the map does not grow with the catalog.
type KeyedLock struct {
  mu      sync.Mutex
  entries map[string]*lockEntry
}

type lockEntry struct {
  mu   sync.Mutex
  refs int
}

func NewKeyedLock() *KeyedLock {
  return &KeyedLock{entries: make(map[string]*lockEntry)}
}

func (kl *KeyedLock) Lock(key string) {
  kl.mu.Lock()
  e, ok := kl.entries[key]
  if !ok {
    e = &lockEntry{}
    kl.entries[key] = e
  }
  e.refs++
  kl.mu.Unlock()

  e.mu.Lock()
}

func (kl *KeyedLock) Unlock(key string) {
  kl.mu.Lock()
  e, ok := kl.entries[key]
  if !ok {
    kl.mu.Unlock()
    panic("keylock: unlock of unheld key " + key)
  }
  e.refs--
  if e.refs == 0 {
    delete(kl.entries, key)
  }
  kl.mu.Unlock()

  e.mu.Unlock()
}
