package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const fileMode = 0o600

// fileState is the on-disk layout of a FileStore.
type fileState struct {
	Epoch   uint64            `json:"epoch"`
	Entries map[string]string `json:"entries"`
}

// FileStore persists entries as a JSON file, written atomically via a
// temp-file rename. Safe for concurrent use.
type FileStore struct {
	path    string
	lock    sync.RWMutex
	epoch   uint64
	entries map[string]string
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens or creates the store at path. An existing file is loaded
// so a restarted client sees the previous session.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path:    path,
		entries: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] os.ReadFile")
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		// A corrupt store is unreadable session state, not a fatal
		// condition: start empty, the user logs in again.
		return fs, nil
	}
	fs.epoch = state.Epoch
	if state.Entries != nil {
		fs.entries = state.Entries
	}
	return fs, nil
}

func (fs *FileStore) Get(key string) (string, bool) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	v, ok := fs.entries[key]
	return v, ok
}

func (fs *FileStore) Set(key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.entries[key] = value
	return errors.Wrap(fs.flushLocked(), "[FileStore.Set] flush")
}

func (fs *FileStore) Delete(key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if _, ok := fs.entries[key]; !ok {
		return nil
	}
	delete(fs.entries, key)
	return errors.Wrap(fs.flushLocked(), "[FileStore.Delete] flush")
}

// Clear removes the registered session keys only and bumps the epoch.
// Clearing an already-clear store is a no-op apart from the epoch bump.
func (fs *FileStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	for _, key := range SessionKeys {
		delete(fs.entries, key)
	}
	fs.epoch++
	return errors.Wrap(fs.flushLocked(), "[FileStore.Clear] flush")
}

func (fs *FileStore) Epoch() uint64 {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.epoch
}

// flushLocked writes the current state to disk. Callers hold the write lock.
func (fs *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(fileState{Epoch: fs.epoch, Entries: fs.entries}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "json.MarshalIndent")
	}

	tmp := fs.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return errors.Wrap(err, "os.MkdirAll")
	}
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return errors.Wrap(err, "os.WriteFile")
	}
	return errors.Wrap(os.Rename(tmp, fs.path), "os.Rename")
}
