package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// waitForRelease blocks until the lockfile is removed or renamed away, the
// delay elapses, or ctx is canceled. It watches the lockfile's directory so
// a holder releasing early cuts the wait short instead of sleeping out the
// full backoff delay. Only meaningful on the OS filesystem; when the
// directory cannot be watched it degrades to a plain sleep.
func waitForRelease(ctx context.Context, lockPath string, delay time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return sleep(ctx, delay)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(lockPath)); err != nil {
		return sleep(ctx, delay)
	}

	// The lock may have vanished between the caller's read and the watch
	// registration; without this check we would wait for an event that
	// already fired.
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return sleep(ctx, delay)
			}
			if event.Name == lockPath && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return nil
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return sleep(ctx, delay)
			}
			// Watch errors are non-fatal; the timer still bounds the wait.
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sleep waits out the delay unless ctx is canceled first.
func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
