package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig holds configuration for log rotation
type RotationConfig struct {
	Filename   string // Log file path
	MaxSize    int    // Maximum size in megabytes
	MaxBackups int    // Maximum number of old log files to retain
	MaxAge     int    // Maximum number of days to retain old log files
	Compress   bool   // Compress old log files
}

// DefaultRotation returns default log rotation settings
func DefaultRotation(filename string) RotationConfig {
	return RotationConfig{
		Filename:   filename,
		MaxSize:    5,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
}

var (
	mu      sync.Mutex
	logFile *lumberjack.Logger
)

// Init routes logrus output to a rotating file. The dashboard owns the
// terminal, so nothing is written to stdout or stderr once this returns.
func Init(cfg RotationConfig, verbose bool) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0755); err != nil {
		return err
	}

	logFile = &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	logrus.SetOutput(logFile)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	return nil
}

// Close flushes and closes the log file, sending later output to stderr
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logrus.SetOutput(os.Stderr)
}

// Discard silences logging entirely; tests use it to keep output clean
func Discard() {
	logrus.SetOutput(io.Discard)
}

// Info logs an informational message.
func Info(format string, v ...interface{}) {
	logrus.Infof(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	logrus.Errorf(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	logrus.Debugf(format, v...)
}

// WithFields starts a structured entry
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logrus.WithFields(fields)
}
