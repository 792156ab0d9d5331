package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorePutGet(t *testing.T) {
	s := openTestStore(t)

	s.Put("deployment", "wf-1", "a", "b", "c")

	items, ok := s.Get("deployment", "wf-1")
	if !ok {
		t.Fatal("Get() found = false, want true")
	}
	if len(items) != 3 {
		t.Fatalf("Get() len = %d, want 3", len(items))
	}
	if items[0] != "a" || items[1] != "b" || items[2] != "c" {
		t.Errorf("Get() = %v, want [a b c]", items)
	}
}

func TestStoreGetUnknownKey(t *testing.T) {
	s := openTestStore(t)

	if _, ok := s.Get("deployment", "unknown"); ok {
		t.Error("Get() found = true for a key never Put, want false")
	}
}

func TestStoreGetIndexed(t *testing.T) {
	s := openTestStore(t)
	s.Put("topology", "wf-1", "n0", "n1", "n2")

	v, ok := s.GetIndexed("topology", "wf-1", 1)
	if !ok || v != "n1" {
		t.Errorf("GetIndexed(1) = (%v, %v), want (n1, true)", v, ok)
	}

	if _, ok := s.GetIndexed("topology", "wf-1", 5); ok {
		t.Error("GetIndexed() out of range found = true, want false")
	}
	if _, ok := s.GetIndexed("topology", "wf-1", -1); ok {
		t.Error("GetIndexed() negative index found = true, want false")
	}
}

func TestStorePutReplacesPriorValue(t *testing.T) {
	s := openTestStore(t)
	s.Put("links", "wf-1", "first")
	s.Put("links", "wf-1", "second", "third")

	items, ok := s.Get("links", "wf-1")
	if !ok || len(items) != 2 || items[0] != "second" || items[1] != "third" {
		t.Errorf("Get() after replace = %v, %v, want [second third], true", items, ok)
	}
}

func TestStoreRestoreAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	s1, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s1.Put("deployment", "wf-1", "alpha", "beta")
	if err := s1.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen Open() error = %v", err)
	}
	defer s2.Close()

	items, ok := s2.Get("deployment", "wf-1")
	if !ok {
		t.Fatal("Get() after reopen found = false, want true")
	}
	if len(items) != 2 || items[0] != "alpha" || items[1] != "beta" {
		t.Errorf("Get() after reopen = %v, want [alpha beta]", items)
	}
}

func TestStorePutIsolatesByRef(t *testing.T) {
	s := openTestStore(t)
	s.Put("deployment", "wf-1", "one")
	s.Put("deployment", "wf-2", "two")

	items1, _ := s.Get("deployment", "wf-1")
	items2, _ := s.Get("deployment", "wf-2")
	if len(items1) != 1 || items1[0] != "one" {
		t.Errorf("wf-1 items = %v, want [one]", items1)
	}
	if len(items2) != 1 || items2[0] != "two" {
		t.Errorf("wf-2 items = %v, want [two]", items2)
	}
}
