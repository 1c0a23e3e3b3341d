package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher proactively nudges a Store's Reload between ticks when its
// backing files change on disk, debounced the way
// internal/ingest/watcher.go coalesces rapid Create+Write events on the
// teacher. This is a convenience, not the contract: the scheduler-driven
// Reload() on every tick (§4.1/§4.2) remains the mechanism correctness
// depends on, so a missed or delayed fsnotify event never causes a stale
// read past the next tick.
type Watcher struct {
	store *Store
	log   zerolog.Logger

	fsw    *fsnotify.Watcher
	done   chan struct{}
	debounceMu sync.Mutex
	timer      *time.Timer
}

// NewWatcher starts watching the directories containing domainPath and
// alertPath. Failure to start the watcher is non-fatal — it only means the
// mtime-polling reload on each tick is relied on exclusively.
func NewWatcher(store *Store, domainPath, alertPath string, log zerolog.Logger) *Watcher {
	w := &Watcher{store: store, log: log, done: make(chan struct{})}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("config watcher unavailable, falling back to tick-driven reload only")
		return w
	}
	w.fsw = fsw

	for _, dir := range uniqueDirs(domainPath, alertPath) {
		if err := fsw.Add(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("failed to watch config directory")
		}
	}

	go w.loop()
	return w
}

func uniqueDirs(paths ...string) []string {
	seen := map[string]struct{}{}
	var dirs []string
	for _, p := range paths {
		d := filepath.Dir(p)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dirs = append(dirs, d)
	}
	return dirs
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

// scheduleReload debounces by 250ms so rapid successive writes (editors
// that truncate-then-write) coalesce into a single reload.
func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.timer != nil {
		w.timer.Reset(250 * time.Millisecond)
		return
	}
	w.timer = time.AfterFunc(250*time.Millisecond, func() {
		w.debounceMu.Lock()
		w.timer = nil
		w.debounceMu.Unlock()
		w.store.Reload()
	})
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	close(w.done)
	if w.fsw != nil {
		w.fsw.Close()
	}
}
