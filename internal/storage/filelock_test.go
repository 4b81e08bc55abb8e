package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestWriteFileLocked_ReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yaml")
	if err := writeFileLocked(path, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := writeFileLocked(path, []byte("second")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestWriteFileLocked_ConcurrentWritersLeaveOneWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := writeFileLocked(path, []byte(fmt.Sprintf("writer-%02d", i))); err != nil {
				t.Errorf("writer %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len("writer-00") {
		t.Errorf("content = %q, want a single writer's payload", got)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.Name() != "store.yaml" && e.Name() != "store.yaml.lock" {
			t.Errorf("leftover file %s", e.Name())
		}
	}
}

func TestWriteFileLocked_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "store.yaml")
	if err := writeFileLocked(path, []byte("x")); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}
