package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher reloads the config file when it changes, feeding the setup
// wizard's live preview. The startup pipeline itself never consumes
// reloads; its Settings snapshot is immutable.
type Watcher struct {
	path     string
	onChange func(*Settings)

	mu      sync.RWMutex
	current *Settings
	stopCh  chan struct{}
	once    sync.Once
}

// NewWatcher constructs a watcher over path. onChange may be nil.
func NewWatcher(path string, initial *Settings, onChange func(*Settings)) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		current:  initial,
		stopCh:   make(chan struct{}),
	}
}

// Current returns the most recently loaded settings.
func (w *Watcher) Current() *Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop terminates watching. Idempotent.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stopCh) })
}

// Start begins watching. Falls back to polling when fsnotify is
// unavailable.
func (w *Watcher) Start() {
	if w.path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Warn("failed to create file watcher, falling back to polling")
		go w.poll()
		return
	}
	if err := watcher.Add(w.path); err != nil {
		log.WithError(err).WithField("path", w.path).Warn("failed to watch config file, falling back to polling")
		_ = watcher.Close()
		go w.poll()
		return
	}
	// Watch the directory too, to catch atomic writes (rename operations).
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		log.WithError(err).WithField("dir", filepath.Dir(w.path)).Warn("failed to watch config directory")
	}
	log.WithField("path", w.path).Info("config watcher started using fsnotify")

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		const debounceDuration = 100 * time.Millisecond

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != w.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDuration, w.reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("config watcher error")
			case <-w.stopCh:
				if debounce != nil {
					debounce.Stop()
				}
				return
			}
		}
	}()
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	log.WithField("interval", "5s").Info("config watcher started using polling")
	for {
		select {
		case <-ticker.C:
			w.reload()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg := LoadWithFile(w.path)

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	if old != nil && cfg != nil {
		if old.Backend != cfg.Backend {
			log.WithFields(log.Fields{"field": "backend", "old": old.Backend, "new": cfg.Backend}).Info("config changed")
		}
		if old.LocalBaseURL != cfg.LocalBaseURL {
			log.WithFields(log.Fields{"field": "local_base_url", "old": old.LocalBaseURL, "new": cfg.LocalBaseURL}).Info("config changed")
		}
		if old.InferenceURL != cfg.InferenceURL {
			log.WithFields(log.Fields{"field": "inference_url", "old": old.InferenceURL, "new": cfg.InferenceURL}).Info("config changed")
		}
		if old.Headless != cfg.Headless {
			log.WithFields(log.Fields{"field": "headless", "old": old.Headless, "new": cfg.Headless}).Info("config changed")
		}
	}
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
