package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Reloader watches the rules file and reloads the server's gate when it
// changes. A failed reload keeps the previous rules.
type Reloader struct {
	watcher  *fsnotify.Watcher
	server   *Server
	path     string
	debounce time.Duration

	mu      sync.Mutex
	reloads int
}

// NewReloader creates a file watcher for the server's rules file. The
// containing directory is watched so that editors replacing the file by
// rename are picked up.
func NewReloader(server *Server) (*Reloader, error) {
	path := server.RulesPath()
	if path == "" {
		return nil, fmt.Errorf("no rules file to watch")
	}
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("rules directory %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	return &Reloader{
		watcher:  watcher,
		server:   server,
		path:     filepath.Clean(path),
		debounce: 500 * time.Millisecond,
	}, nil
}

// Reloads returns the number of successful reloads.
func (r *Reloader) Reloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloads
}

func (r *Reloader) reload() {
	log := logrus.WithField("rules", r.path)
	if err := r.server.ReloadRules(); err != nil {
		log.WithError(err).Error("Rules reload failed, keeping previous rules")
		return
	}
	r.mu.Lock()
	r.reloads++
	r.mu.Unlock()
	log.WithField("hash", r.server.RulesHash()).Info("Rules reloaded")
}

// Run watches for file changes and reloads rules. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// Debounce: wait after the last event before reloading
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
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(r.debounce, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			logrus.WithError(err).Warn("File watcher error")
		}
	}
}
