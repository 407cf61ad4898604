// Package logging configures the process-wide zerolog logger, matching the
// console/JSON split the teacher repo uses for interactive vs. daemon runs.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls how the root logger is built.
type Options struct {
	Level    string // trace, debug, info, warn, error
	Pretty   bool
	FilePath string // optional rotating log file; empty disables file logging
}

// Init configures the global zerolog logger and returns a closer for the
// rotating file writer, if one was opened.
func Init(opts Options) (io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if opts.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		writers = append(writers, os.Stderr)
	}

	var rotator *rotatingWriter
	if opts.FilePath != "" {
		rotator, err = newRotatingWriter(opts.FilePath, 10*1024*1024, 3)
		if err != nil {
			return nil, err
		}
		writers = append(writers, rotator)
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	if rotator == nil {
		return io.NopCloser(nil), nil
	}
	return rotator, nil
}

// Component returns a child logger tagged with the owning subsystem, the
// way the teacher tags every package logger with "component".
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// rotatingWriter is a size-capped log file: when the active file exceeds
// maxBytes it is renamed with a timestamp suffix and a fresh file opened.
// No external rotation library is wired in because none of the pack's
// dependencies (zerolog, cobra, testify, sqlite, websocket, prometheus,
// dnscache, fsnotify, wildcard, godotenv, ulid, uuid) address file rotation;
// this is the one ambient concern left on the standard library.
type rotatingWriter struct {
	path     string
	maxBytes int64
	backups  int
	file     *os.File
	size     int64
}

func newRotatingWriter(path string, maxBytes int64, backups int) (*rotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &rotatingWriter{path: path, maxBytes: maxBytes, backups: backups, file: f, size: info.Size()}, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	if w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	backup := w.path + "." + time.Now().UTC().Format("20060102T150405")
	if err := os.Rename(w.path, backup); err != nil {
		return err
	}
	w.pruneBackups()
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.size = 0
	return nil
}

func (w *rotatingWriter) pruneBackups() {
	matches, err := filepath.Glob(w.path + ".*")
	if err != nil || len(matches) <= w.backups {
		return
	}
	// Oldest-first lexically, since the suffix is a sortable timestamp.
	for _, old := range matches[:len(matches)-w.backups] {
		os.Remove(old)
	}
}

func (w *rotatingWriter) Close() error {
	return w.file.Close()
}
