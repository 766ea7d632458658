// Package logging builds the process logger.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the optional log file.
const (
	MaxSizeMB  = 10
	MaxBackups = 3
	MaxAgeDays = 28
)

// New returns a logger writing to stderr and, when file is non-empty, to a
// size-rotated log file as well. stdout stays untouched because the MCP
// transport owns it. The returned closer releases the log file.
func New(prefix, file string) (*log.Logger, io.Closer, error) {
	return newLogger(os.Stderr, prefix, file)
}

func newLogger(console io.Writer, prefix, file string) (*log.Logger, io.Closer, error) {
	if file == "" {
		return log.New(console, prefix, log.LstdFlags), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    MaxSizeMB,
		MaxBackups: MaxBackups,
		MaxAge:     MaxAgeDays,
		Compress:   true,
	}
	return log.New(io.MultiWriter(console, rotator), prefix, log.LstdFlags), rotator, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
