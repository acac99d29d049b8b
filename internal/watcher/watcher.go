// Package watcher monitors the configuration file for changes and triggers a
// reload when its content actually changes. Editors commonly emit several
// write events per save, so changes are debounced and guarded by a content
// hash.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/craftpad/payload-mcp/internal/config"
)

const debounceDelay = 200 * time.Millisecond

// Watcher watches one configuration file.
type Watcher struct {
	configPath string
	reload     func(*config.Config)
	fsWatcher  *fsnotify.Watcher
	lastHash   string
}

// NewWatcher creates a watcher that invokes reload with the freshly loaded
// configuration whenever the file's content changes.
func NewWatcher(configPath string, reload func(*config.Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		configPath: configPath,
		reload:     reload,
		fsWatcher:  fsWatcher,
		lastHash:   hashFile(configPath),
	}, nil
}

// Start begins watching. The parent directory is watched rather than the
// file itself so the watch survives rename-based saves. Blocks until ctx is
// cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsWatcher.Add(filepath.Dir(w.configPath)); err != nil {
		return err
	}
	log.Debugf("watching config file %s", w.configPath)

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return w.fsWatcher.Close()
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, w.maybeReload)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) maybeReload() {
	hash := hashFile(w.configPath)
	if hash == "" || hash == w.lastHash {
		return
	}
	w.lastHash = hash

	cfg, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("failed to reload config: %v", err)
		return
	}
	log.Info("configuration reloaded")
	w.reload(cfg)
}

func hashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
