package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// fileStore is a generic, mtime-keyed hot-reloadable JSON file, exactly
// the contract §4.2 specifies for the Config Store: reload() re-reads only
// when the file's mtime differs from the last observed mtime; read errors
// on reload are logged and leave the previous view intact; read errors on
// initial load are fatal to the caller.
type fileStore[T any] struct {
	path string
	log  zerolog.Logger

	mu      sync.Mutex // serializes Reload against concurrent callers
	lastMod time.Time

	value atomic.Pointer[T]
}

func newFileStore[T any](path string, log zerolog.Logger) (*fileStore[T], error) {
	fs := &fileStore[T]{path: path, log: log}
	v, modTime, err := readJSONFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("initial load of %s: %w", path, err)
	}
	fs.value.Store(v)
	fs.lastMod = modTime
	return fs, nil
}

// Reload re-reads the backing file only if its mtime has changed since the
// last successful read. Any error (stat, read, or parse) is logged and the
// previously loaded value is kept in effect.
func (fs *fileStore[T]) Reload() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	info, err := os.Stat(fs.path)
	if err != nil {
		fs.log.Error().Err(err).Str("path", fs.path).Msg("config stat failed, keeping previous configuration")
		return
	}
	if info.ModTime().Equal(fs.lastMod) {
		return
	}

	v, modTime, err := readJSONFile[T](fs.path)
	if err != nil {
		fs.log.Error().Err(err).Str("path", fs.path).Msg("config reload failed, keeping previous configuration")
		return
	}
	fs.value.Store(v)
	fs.lastMod = modTime
	fs.log.Info().Str("path", fs.path).Msg("configuration reloaded")
}

// Get returns the current value. Callers get a pointer to an immutable
// snapshot — reload never mutates a value in place, it swaps the pointer.
func (fs *fileStore[T]) Get() *T {
	return fs.value.Load()
}

func readJSONFile[T any](path string) (*T, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, time.Time{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return &v, info.ModTime(), nil
}
