package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func collect() (func(path string), chan string) {
	ch := make(chan string, 16)
	return func(path string) { ch <- path }, ch
}

func waitFor(t *testing.T, ch chan string, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for ingest of %s", want)
		}
	}
}

func TestIngestOnWrite(t *testing.T) {
	dir := t.TempDir()
	onIngest, ch := collect()
	w := New([]string{dir}, []string{".txt"}, true, 50*time.Millisecond, onIngest, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ch, path)
}

func TestExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	onIngest, ch := collect()
	w := New([]string{dir}, []string{".md"}, true, 50*time.Millisecond, onIngest, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "skip.bin"), []byte{0}, 0644); err != nil {
		t.Fatal(err)
	}
	keep := filepath.Join(dir, "keep.md")
	if err := os.WriteFile(keep, []byte("# hi"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, ch, keep)
	select {
	case got := <-ch:
		t.Fatalf("unexpected ingest of %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDebounceCollapsesBursts(t *testing.T) {
	dir := t.TempDir()
	onIngest, ch := collect()
	w := New([]string{dir}, nil, true, 150*time.Millisecond, onIngest, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "burst.txt")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("v"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	waitFor(t, ch, path)
	select {
	case got := <-ch:
		t.Fatalf("burst produced a second ingest of %s", got)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestSyncExisting(t *testing.T) {
	dir := t.TempDir()
	pre := filepath.Join(dir, "existing.txt")
	if err := os.WriteFile(pre, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	onIngest, ch := collect()
	w := New([]string{dir}, []string{".txt"}, true, 50*time.Millisecond, onIngest, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExisting()
	waitFor(t, ch, pre)
}

func TestStartMissingRoot(t *testing.T) {
	w := New([]string{filepath.Join(t.TempDir(), "absent")}, nil, true, 0, nil, nil)
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Fatal("missing root should fail Start")
	}
}
