package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceReload is a var (not a const) so tests can shorten it.
var debounceReload = 200 * time.Millisecond

// Watcher reloads Config in place whenever netpulse.json changes on disk,
// so an operator editing the file by hand (or a future admin UI writing it
// directly) takes effect without a restart.
type Watcher struct {
	cfg     *Config
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching cfg.DataDir for changes to netpulse.json.
func NewWatcher(cfg *Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(cfg.DataDir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{cfg: cfg, watcher: fsw, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var pending *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(debounceReload, w.reloadFromDisk)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("config watcher error")
		case <-w.done:
			if pending != nil {
				pending.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reloadFromDisk() {
	fresh, err := Load(w.cfg.DataDir)
	if err != nil {
		log.Error().Err(err).Msg("failed to reload config after file change")
		return
	}

	Mu.Lock()
	*w.cfg = *fresh
	Mu.Unlock()
	log.Info().Msg("configuration reloaded from disk")
}

// Stop halts the watch goroutine and closes the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}
