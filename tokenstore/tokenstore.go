// Package tokenstore provides TokenStore and FlagStore implementations.
//
// Memory is the analogue of session-scoped browser storage: it lives for
// the process and vanishes with it. FileStore and FileFlags persist
// across restarts, standing in for the browser's persistent storage that
// backs the onboarding memoization flags.
//
// Storage trouble is never fatal to callers: a store that cannot be read
// reports "no credential" / "flag unset" and the session degrades to
// unauthenticated.
package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	swissknife "github.com/swissknife-wallet/swissknife-go"
)

// Memory is an in-memory, process-scoped token store.
type Memory struct {
	mu    sync.RWMutex
	token string
	set   bool
}

var _ swissknife.TokenStore = (*Memory)(nil)

// NewMemory creates an empty in-memory token store.
func NewMemory() *Memory { return &Memory{} }

// Save writes the raw token.
func (m *Memory) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.set = true
	return nil
}

// Load returns the stored token, or swissknife.ErrNoToken if absent.
func (m *Memory) Load() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return "", swissknife.ErrNoToken
	}
	return m.token, nil
}

// Clear removes the token.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.set = false
	return nil
}

// FileStore persists the token in a single file with owner-only
// permissions.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ swissknife.TokenStore = (*FileStore)(nil)

// NewFileStore creates a file-backed token store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes the raw token to disk.
func (s *FileStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("swissknife/tokenstore: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("swissknife/tokenstore: %w", err)
	}
	return nil
}

// Load returns the stored token. A missing or unreadable file reads as
// swissknife.ErrNoToken.
func (s *FileStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", swissknife.ErrNoToken
	}
	if len(data) == 0 {
		return "", swissknife.ErrNoToken
	}
	return string(data), nil
}

// Clear removes the token file. A file that is already gone is not an
// error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("swissknife/tokenstore: %w", err)
	}
	return nil
}

// FileFlags is a file-backed FlagStore holding one-way boolean markers,
// such as the onboarding completion flags. Flags are loaded once at
// construction and written through on every change.
type FileFlags struct {
	mu    sync.Mutex
	path  string
	flags map[string]bool
}

var _ swissknife.FlagStore = (*FileFlags)(nil)

// NewFileFlags creates a flag store at path, loading any existing flags.
// An unreadable file starts the store empty.
func NewFileFlags(path string) *FileFlags {
	f := &FileFlags{path: path, flags: make(map[string]bool)}
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &f.flags)
	}
	return f
}

// Get reports whether the flag is set.
func (f *FileFlags) Get(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flags[key]
}

// Set marks the flag and persists the store.
func (f *FileFlags) Set(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[key] = true
	return f.write()
}

// Delete removes the flag and persists the store.
func (f *FileFlags) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.flags, key)
	return f.write()
}

func (f *FileFlags) write() error {
	data, err := json.Marshal(f.flags)
	if err != nil {
		return fmt.Errorf("swissknife/tokenstore: encode flags: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("swissknife/tokenstore: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("swissknife/tokenstore: %w", err)
	}
	return nil
}

// MemoryFlags is an in-memory FlagStore for tests and ephemeral hosts.
type MemoryFlags struct {
	mu    sync.Mutex
	flags map[string]bool
}

var _ swissknife.FlagStore = (*MemoryFlags)(nil)

// NewMemoryFlags creates an empty in-memory flag store.
func NewMemoryFlags() *MemoryFlags {
	return &MemoryFlags{flags: make(map[string]bool)}
}

// Get reports whether the flag is set.
func (f *MemoryFlags) Get(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flags[key]
}

// Set marks the flag.
func (f *MemoryFlags) Set(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[key] = true
	return nil
}

// Delete removes the flag.
func (f *MemoryFlags) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.flags, key)
	return nil
}
