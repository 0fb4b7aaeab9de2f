// Package logging sets up the rotating file logger shared by all components.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 1
	maxBackups = 10

	TimestampFormat = "2006-01-02 15:04:05"
)

// New returns a logger writing to path, rotated at 1 MB with ten backups.
// When the log directory cannot be created the logger writes to a file under
// the system temp directory instead, and the returned error says where. It
// never writes to the terminal, which belongs to the TUI.
func New(path, level string) (*logrus.Logger, io.Closer, error) {
	return newLogger(path, filepath.Join(os.TempDir(), "chaussettes", filepath.Base(path)), level)
}

func newLogger(path, fallback, level string) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		TimestampFormat:  TimestampFormat,
		DisableColors:    true,
		QuoteEmptyFields: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.DebugLevel
	}
	log.SetLevel(lvl)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		if ferr := os.MkdirAll(filepath.Dir(fallback), 0o755); ferr != nil {
			log.SetOutput(io.Discard)
			return log, io.NopCloser(nil), fmt.Errorf("failed to create log directory, logging disabled: %w", err)
		}
		rotator := newRotator(fallback)
		log.SetOutput(rotator)
		return log, rotator, fmt.Errorf("failed to create log directory, logging to %s: %w", fallback, err)
	}

	rotator := newRotator(path)
	log.SetOutput(rotator)
	return log, rotator, nil
}

func newRotator(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
}
