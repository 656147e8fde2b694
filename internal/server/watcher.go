package server

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces bursts of editor writes into one reload.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls a reload function when configuration files change in any of
// the watched directories.
type Watcher struct {
	watcher  *fsnotify.Watcher
	reload   func()
	logger   *zap.Logger
	debounce time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup

	timerMu      sync.Mutex
	pendingTimer *time.Timer
}

// NewWatcher watches dirs. Directories that do not exist are skipped with a
// warning.
func NewWatcher(dirs []string, debounce time.Duration, reload func(), logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		watcher:  fsWatcher,
		reload:   reload,
		logger:   logger,
		debounce: debounce,
		stopChan: make(chan struct{}),
	}
	for _, dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			logger.Warn("cannot watch config directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		logger.Debug("watching config directory", zap.String("dir", dir))
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Stop ends watching and cancels any pending reload.
func (w *Watcher) Stop() error {
	close(w.stopChan)
	w.wg.Wait()

	w.timerMu.Lock()
	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.timerMu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !isConfigFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.logger.Debug("config file changed",
		zap.String("file", filepath.Base(event.Name)),
		zap.String("op", event.Op.String()))
	w.scheduleReload()
}

func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.pendingTimer = time.AfterFunc(w.debounce, w.reload)
}

func isConfigFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".toml":
		return true
	}
	return false
}
