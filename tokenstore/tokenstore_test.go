package tokenstore

import (
	"errors"
	"path/filepath"
	"testing"

	swissknife "github.com/swissknife-wallet/swissknife-go"
)

func TestMemory_SaveLoadClear(t *testing.T) {
	s := NewMemory()

	if _, err := s.Load(); !errors.Is(err, swissknife.ErrNoToken) {
		t.Fatalf("Load() on empty store error = %v, want ErrNoToken", err)
	}

	if err := s.Save("tok-1"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != "tok-1" {
		t.Errorf("Load() = %q, want %q", got, "tok-1")
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := s.Load(); !errors.Is(err, swissknife.ErrNoToken) {
		t.Errorf("Load() after Clear error = %v, want ErrNoToken", err)
	}
}

func TestMemory_ClearIdempotent(t *testing.T) {
	s := NewMemory()
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() on empty store error: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("second Clear() error: %v", err)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "token")
	s := NewFileStore(path)

	if _, err := s.Load(); !errors.Is(err, swissknife.ErrNoToken) {
		t.Fatalf("Load() on missing file error = %v, want ErrNoToken", err)
	}

	if err := s.Save("tok-file"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// A second store over the same path sees the token.
	got, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != "tok-file" {
		t.Errorf("Load() = %q, want %q", got, "tok-file")
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() on missing file error: %v", err)
	}
	if _, err := s.Load(); !errors.Is(err, swissknife.ErrNoToken) {
		t.Errorf("Load() after Clear error = %v, want ErrNoToken", err)
	}
}

func TestFileFlags_PersistAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.json")

	f := NewFileFlags(path)
	if f.Get("welcomeCompleted") {
		t.Error("Get() on fresh store = true, want false")
	}
	if err := f.Set("welcomeCompleted"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	again := NewFileFlags(path)
	if !again.Get("welcomeCompleted") {
		t.Error("Get() after reload = false, want true")
	}

	if err := again.Delete("welcomeCompleted"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if NewFileFlags(path).Get("welcomeCompleted") {
		t.Error("Get() after Delete and reload = true, want false")
	}
}

func TestFileFlags_UnreadableFileStartsEmpty(t *testing.T) {
	f := NewFileFlags(filepath.Join(t.TempDir(), "nope", "flags.json"))
	if f.Get("anything") {
		t.Error("Get() on unreadable store = true, want false")
	}
}
