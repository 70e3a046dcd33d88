package storefakes

import (
	"sync"

	"github.com/lexlink/client-go/store"
)

var _ store.Store = (*FakeStore)(nil)

// FakeStore is an in-memory store for tests. SetErr, when non-nil, is
// returned from every write so error paths can be exercised.
type FakeStore struct {
	lock    sync.RWMutex
	epoch   uint64
	entries map[string]string

	SetErr error

	SetCalls   int
	ClearCalls int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{entries: make(map[string]string)}
}

// Seed populates entries without counting as a Set call.
func (f *FakeStore) Seed(entries map[string]string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for k, v := range entries {
		f.entries[k] = v
	}
}

// Len reports the number of stored entries.
func (f *FakeStore) Len() int {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return len(f.entries)
}

func (f *FakeStore) Get(key string) (string, bool) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	v, ok := f.entries[key]
	return v, ok
}

func (f *FakeStore) Set(key, value string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.SetCalls++
	if f.SetErr != nil {
		return f.SetErr
	}
	f.entries[key] = value
	return nil
}

func (f *FakeStore) Delete(key string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.SetErr != nil {
		return f.SetErr
	}
	delete(f.entries, key)
	return nil
}

func (f *FakeStore) Clear() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.ClearCalls++
	for _, key := range store.SessionKeys {
		delete(f.entries, key)
	}
	f.epoch++
	return nil
}

func (f *FakeStore) Epoch() uint64 {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.epoch
}
