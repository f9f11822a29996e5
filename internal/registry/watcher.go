package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDelay = 200 * time.Millisecond

// Watch reloads the registry whenever its file changes, until ctx is done.
// The parent directory is watched so editors that replace the file by
// rename are picked up too.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create registry watcher: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(r.path)

	go func() {
		var (
			debounceTimer *time.Timer
			mu            sync.Mutex
		)

		defer func() {
			mu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			mu.Unlock()
			_ = watcher.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}

				mu.Lock()
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					if ctx.Err() != nil {
						return
					}
					if err := r.Load(); err != nil {
						r.logger.Warn("Camera registry reload failed", zap.String("path", r.path), zap.Error(err))
					}
				})
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("Camera registry watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
