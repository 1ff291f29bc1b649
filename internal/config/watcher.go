package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher watches a config file for changes and triggers reload.
// The parent directory is watched so that editors and tools that replace
// the file by rename are noticed.
type ConfigWatcher struct {
	filePath   string
	debounce   time.Duration
	watcher    *fsnotify.Watcher
	lastConfig *Config
	onChange   func(oldCfg, newCfg *Config)
	onError    func(err error)
	stopCh     chan struct{}
	stoppedCh  chan struct{}
	mu         sync.Mutex
	running    bool
}

// WatcherConfig holds config watcher configuration.
type WatcherConfig struct {
	FilePath string
	Debounce time.Duration // Default: 200ms
	OnChange func(oldCfg, newCfg *Config)
	// OnError receives reload failures; the previous config stays current.
	OnError func(err error)
}

// NewConfigWatcher creates a new config file watcher.
func NewConfigWatcher(cfg *WatcherConfig) (*ConfigWatcher, error) {
	if cfg.FilePath == "" {
		return nil, ErrMissingConfigFile
	}
	if cfg.OnChange == nil {
		return nil, ErrMissingOnChange
	}

	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = 200 * time.Millisecond
	}

	path, err := filepath.Abs(cfg.FilePath)
	if err != nil {
		return nil, err
	}

	initialConfig, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	onError := cfg.OnError
	if onError == nil {
		onError = func(error) {}
	}

	return &ConfigWatcher{
		filePath:   path,
		debounce:   debounce,
		watcher:    fw,
		lastConfig: initialConfig,
		onChange:   cfg.OnChange,
		onError:    onError,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}, nil
}

// Start begins watching the config file for changes.
func (w *ConfigWatcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.watchLoop()
}

// Stop stops watching the config file and releases the underlying watcher.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh
	_ = w.watcher.Close()
}

func (w *ConfigWatcher) watchLoop() {
	defer close(w.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.filePath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.debounce)
			debounceCh = debounceTimer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onError(fmt.Errorf("watcher error: %w", err))

		case <-debounceCh:
			w.triggerReload()
			debounceTimer = nil
			debounceCh = nil
		}
	}
}

// triggerReload loads the new config and calls onChange. Invalid files
// are reported and otherwise ignored.
func (w *ConfigWatcher) triggerReload() {
	newConfig, err := LoadConfig(w.filePath)
	if err != nil {
		w.onError(err)
		return
	}

	if errs := ValidateConfig(newConfig); len(errs) > 0 {
		w.onError(fmt.Errorf("invalid configuration: %w", errs[0]))
		return
	}

	w.mu.Lock()
	oldConfig := w.lastConfig
	w.lastConfig = newConfig
	w.mu.Unlock()

	w.onChange(oldConfig, newConfig)
}

// IsRunning returns true if the watcher is running.
func (w *ConfigWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// GetCurrentConfig returns the last loaded config.
func (w *ConfigWatcher) GetCurrentConfig() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastConfig
}
