package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestMemoryFileSystem_CreateAndOpen(t *testing.T) {
	m := NewMemoryFileSystem()

	w, err := m.Create("/data/run.evt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("EVT3")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := m.Open("/data//run.evt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "EVT3" {
		t.Errorf("content = %q, want EVT3", got)
	}
	if !m.Exists("/data/run.evt") {
		t.Error("Exists should report the written file")
	}
}

func TestMemoryFileSystem_OpenMissing(t *testing.T) {
	m := NewMemoryFileSystem()
	_, err := m.Open("nope")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_BytesAreCopies(t *testing.T) {
	m := NewMemoryFileSystem()
	w, _ := m.Create("a")
	_, _ = w.Write([]byte{1, 2, 3})
	_ = w.Close()

	b, ok := m.Bytes("a")
	if !ok {
		t.Fatal("Bytes: file missing")
	}
	b[0] = 9
	again, _ := m.Bytes("a")
	if again[0] != 1 {
		t.Error("Bytes must return a copy")
	}
}

func TestMemoryFileSystem_MkdirAll(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.MkdirAll("out/plots/run1", 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, dir := range []string{"out", "out/plots", "out/plots/run1"} {
		if !m.Exists(dir) {
			t.Errorf("expected %s to exist", dir)
		}
	}
}

func TestOSFileSystem_RoundTrip(t *testing.T) {
	var fsys OSFileSystem
	dir := filepath.Join(t.TempDir(), "nested")
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	name := filepath.Join(dir, "f.bin")
	w, err := fsys.Create(name)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, _ = w.Write([]byte("hello"))
	_ = w.Close()

	if !fsys.Exists(name) {
		t.Fatal("file should exist")
	}
	r, err := fsys.Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if string(got) != "hello" {
		t.Errorf("content = %q", got)
	}
}
