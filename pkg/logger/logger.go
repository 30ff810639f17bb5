// Package logger provides the ambient structured logger for the
// scheduling core. It wraps logrus the same way across every
// component so a callback's "job started"/"tick skipped" lines share
// one format regardless of which scheduler installed them.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Entry so callers can attach fields without
// importing logrus directly, and so fields attached once (NewDefault's
// "component", say) stick across every subsequent log line rather
// than being dropped at construction.
type Logger struct {
	*logrus.Entry
}

// Config controls level, format and output destination.
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePrefix string `mapstructure:"file_prefix"`
}

// New builds a Logger from Config.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "scheduling-core"
		}
		logDir := "logs"
		if err := os.MkdirAll(logDir, 0755); err != nil {
			l.Errorf("failed to create log directory: %v", err)
			break
		}
		path := filepath.Join(logDir, prefix+".log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			l.Errorf("failed to open log file: %v", err)
			break
		}
		l.SetOutput(io.MultiWriter(os.Stdout, file))
	default:
		l.SetOutput(os.Stdout)
	}

	return &Logger{Entry: logrus.NewEntry(l)}
}

// NewDefault returns a Logger with sane defaults, named for the
// component that owns it (attached as a persistent "component" field
// on every line it logs).
func NewDefault(component string) *Logger {
	l := New(Config{Level: "info", Format: "text", Output: "stdout"})
	return &Logger{Entry: l.WithField("component", component)}
}

// WithField returns a log entry carrying one extra field in addition
// to any this Logger already carries.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Entry.WithField(key, value)
}

// WithFields returns a log entry carrying several extra fields in
// addition to any this Logger already carries.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Entry.WithFields(fields)
}
