package resource

import (
	"context"
	"io/fs"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch observes the package roots and invokes onChange after resource
// files are created, modified, renamed or removed. Bursts of events are
// coalesced into a single callback. Watch blocks until ctx is done.
//
// fsnotify does not watch recursively, so every directory below each
// root is registered; directories created while watching are added as
// their create events arrive.
func (r *Roots) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range r.dirs {
		addRecursive(watcher, dir)
	}

	const settle = 200 * time.Millisecond
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				addRecursive(watcher, event.Name)
			}
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %s", err)
		case <-fire:
			fire = nil
			onChange()
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, dir string) {
	filepath.Walk(dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			log.Printf("failed to watch %q: %s", path, err)
		}
		return nil
	})
}
