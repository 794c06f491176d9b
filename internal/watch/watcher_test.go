package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T, dir string) (chan struct{}, context.CancelFunc) {
	t.Helper()
	w, err := New(dir, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fired := make(chan struct{}, 16)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		w.Run(ctx, func(ctx context.Context) error {
			fired <- struct{}{}
			return nil
		})
	}()
	t.Cleanup(cancel)
	// Give the watcher time to register its watches.
	time.Sleep(100 * time.Millisecond)
	return fired, cancel
}

func TestWatcherFiresAfterChange(t *testing.T) {
	dir := t.TempDir()
	fired, _ := startWatcher(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not fire after a file change")
	}
}

func TestWatcherCoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	fired, _ := startWatcher(t, dir)

	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "file"+string(rune('a'+i))+".js")
		if err := os.WriteFile(name, []byte("x"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not fire")
	}
	// The burst happened within one debounce window, so there should be
	// no second firing.
	select {
	case <-fired:
		t.Error("burst of writes fired more than once")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherIgnoresNodeModules(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "node_modules", "pkg"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	fired, _ := startWatcher(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "node_modules", "pkg", "index.js"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-fired:
		t.Error("changes under node_modules must not retrigger")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	fired, _ := startWatcher(t, dir)

	sub := filepath.Join(dir, "src")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Drain the firing caused by the mkdir itself.
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not fire for new directory")
	}

	if err := os.WriteFile(filepath.Join(sub, "main.js"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not fire for file inside new directory")
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(ctx context.Context) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRejectsMissingPath(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope"), time.Second); err == nil {
		t.Error("expected error for missing path")
	}
}
