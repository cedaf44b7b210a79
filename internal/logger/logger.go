package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes rotated file logging. When Dir is empty, logging goes to
// stdout only. Rotation parameters follow lumberjack semantics.
type Config struct {
	Dir        string // base directory for logs
	MaxSizeMB  int    // megabytes before rotation (default 10)
	MaxBackups int    // number of backups to keep (default 3)
	MaxAgeDays int    // days to keep (default 7)
	Compress   bool   // Gzip rotated files
}

// Writer returns a rotating io.WriteCloser at Dir/<name>.log, or nil when no
// Dir is configured.
func (c Config) Writer(name string) io.WriteCloser {
	if c.Dir == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   filepath.Join(c.Dir, fmt.Sprintf("%s.log", name)),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// New builds the daemon's structured logger. With a Dir configured, records
// go to stdout and to a rotated openclawd.log; the returned closer owns the
// file writer.
func New(c Config) (*slog.Logger, io.Closer, error) {
	file := c.Writer("openclawd")
	if file == nil {
		return slog.New(slog.NewTextHandler(os.Stdout, nil)), nopCloser{}, nil
	}
	w := io.MultiWriter(os.Stdout, file)
	return slog.New(slog.NewTextHandler(w, nil)), file, nil
}

// NewTranscript builds the command transcript logger, recording every bounded
// runner invocation to a rotated file. Returns nil when no Dir is configured.
func NewTranscript(c Config) (*slog.Logger, io.Closer) {
	file := c.Writer("commands")
	if file == nil {
		return nil, nopCloser{}
	}
	return slog.New(slog.NewJSONHandler(file, nil)), file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
