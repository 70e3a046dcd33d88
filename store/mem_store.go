package store

import "sync"

// MemStore is a session-scoped store: it lives for the process only. The
// one-shot post-login redirect target is kept here so it never survives a
// restart.
type MemStore struct {
	lock    sync.RWMutex
	epoch   uint64
	entries map[string]string
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]string)}
}

func (ms *MemStore) Get(key string) (string, bool) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	v, ok := ms.entries[key]
	return v, ok
}

func (ms *MemStore) Set(key, value string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.entries[key] = value
	return nil
}

func (ms *MemStore) Delete(key string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	delete(ms.entries, key)
	return nil
}

func (ms *MemStore) Clear() error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	for _, key := range SessionKeys {
		delete(ms.entries, key)
	}
	ms.epoch++
	return nil
}

func (ms *MemStore) Epoch() uint64 {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	return ms.epoch
}

// TakeOnce reads and deletes a one-shot key, returning the value and whether
// it was present.
func TakeOnce(s Store, key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	_ = s.Delete(key)
	return v, true
}
