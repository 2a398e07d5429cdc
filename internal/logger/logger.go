package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/styl-labs/styld/internal/env"
)

const (
	defaultLogFile    = "logs/styld.log"
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

type options struct {
	level     slog.Leveler
	logFile   string
	logToFile bool
}

// Option configures the logger.
type Option func(*options)

// WithLevel overrides the minimum log level.
func WithLevel(level slog.Leveler) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithLogToFile enables or disables the rotating file sink.
func WithLogToFile(enabled bool) Option {
	return func(o *options) {
		o.logToFile = enabled
	}
}

// WithLogFile sets the path of the rotating file sink.
func WithLogFile(path string) Option {
	return func(o *options) {
		o.logFile = path
	}
}

// New builds a slog.Logger for the given environment.
// Development gets colorized text output, production gets JSON.
// When file logging is enabled, output also goes to a size-rotated
// log file.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := &options{
		logFile: defaultLogFile,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.level == nil {
		if environment == env.Development {
			o.level = slog.LevelDebug
		} else {
			o.level = slog.LevelInfo
		}
	}

	w := io.Writer(os.Stderr)
	if o.logToFile {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			Compress:   true,
		})
	}

	var handler slog.Handler
	if environment.IsProduction() {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: o.level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      o.level,
			TimeFormat: time.TimeOnly,
			NoColor:    o.logToFile,
		})
	}

	return slog.New(handler)
}
