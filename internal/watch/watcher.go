// Package watch reruns validation when project files change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// OnChange is invoked after the debounce window closes. A returned error
// is reported through the watcher's error callback but does not stop
// watching.
type OnChange func(ctx context.Context) error

// Watcher observes a project tree and triggers a callback after changes
// settle. Directories created while watching are picked up automatically.
type Watcher struct {
	projectPath string
	debounce    time.Duration

	// OnError, if set, receives callback and filesystem errors.
	OnError func(error)
}

// New creates a watcher for the project root.
func New(projectPath string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("project path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", abs)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{projectPath: abs, debounce: debounce}, nil
}

// Run watches until the context is canceled. Change bursts are coalesced:
// the callback fires once per quiet period, never concurrently with
// itself.
func (w *Watcher) Run(ctx context.Context, onChange OnChange) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.projectPath); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) {
				continue
			}
			// New directories need their own watches.
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(fsw, ev.Name); err != nil {
						w.reportError(err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			timer = nil
			if err := onChange(ctx); err != nil {
				w.reportError(err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.reportError(err)
		}
	}
}

// addTree registers root and every non-ignored directory under it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.projectPath && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// ignored reports whether a path sits under a directory that should never
// retrigger validation.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.projectPath, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		switch part {
		case "node_modules", "dist", "build", ".":
			return true
		}
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

func (w *Watcher) reportError(err error) {
	if w.OnError != nil {
		w.OnError(err)
	}
}
