package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the reloader waits after the last write.
const DefaultDebounce = 500 * time.Millisecond

// Reloader watches the config file and hot-reloads limits on change.
type Reloader struct {
	watcher  *fsnotify.Watcher
	server   *Server
	path     string
	Debounce time.Duration
	// Reloaded, if set, receives the result of every reload attempt.
	Reloaded func(error)
}

// NewReloader watches the directory holding path, so editors that replace
// the file on save are still seen.
func NewReloader(server *Server, path string) (*Reloader, error) {
	if path == "" {
		return nil, fmt.Errorf("no config file to watch")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}

	return &Reloader{
		watcher:  watcher,
		server:   server,
		path:     filepath.Clean(path),
		Debounce: DefaultDebounce,
	}, nil
}

// Run watches for file changes and reloads config. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(r.Debounce, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.server.log.Warnf("file watcher error: %v", err)
		}
	}
}

func (r *Reloader) reload() {
	err := r.server.ReloadConfig()
	if err != nil {
		r.server.log.Errorf("hot-reload failed: %v", err)
	} else {
		r.server.log.Infof("hot-reload: config reloaded")
	}
	if r.Reloaded != nil {
		r.Reloaded(err)
	}
}
