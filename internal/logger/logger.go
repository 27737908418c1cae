// Package logger provides the process-wide structured logger used across
// the ingestion and retrieval pipeline. Every entry carries a phase and,
// where applicable, an article id or correlation id so Parser -> Dedup ->
// Embed -> Index (or Analyzer -> Retrieval) can be joined for one article
// or one query's lifetime.
package logger

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger as a JSON writer on stdout, at info
// level, or at debug level when BRIEFLY_DEBUG is set. Safe to call
// multiple times; only the first call takes effect.
func Init() {
	once.Do(func() {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		level := zerolog.InfoLevel
		if os.Getenv("BRIEFLY_DEBUG") != "" {
			level = zerolog.DebugLevel
		}
		defaultLogger = zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
		defaultLogger.Info().Msg("logger initialized")
	})
}

// Get returns the initialized default logger, initializing it first if
// necessary.
func Get() *zerolog.Logger {
	Init()
	return &defaultLogger
}

// fields applies a flat list of key/value pairs to a zerolog event context.
func fields(ctx zerolog.Context, args []any) zerolog.Context {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, args[i+1])
	}
	return ctx
}

// Info logs an informational message with structured key/value fields.
func Info(msg string, args ...any) {
	fields(Get().With(), args).Logger().Info().Msg(msg)
}

// Warn logs a warning message with structured key/value fields.
func Warn(msg string, args ...any) {
	fields(Get().With(), args).Logger().Warn().Msg(msg)
}

// Error logs an error message, attaching err (if non-nil) and any
// additional structured key/value fields.
func Error(msg string, err error, args ...any) {
	ev := Get().Error()
	if err != nil {
		ev = ev.Err(err)
	}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}

// Debug logs a debug message with structured key/value fields.
func Debug(msg string, args ...any) {
	fields(Get().With(), args).Logger().Debug().Msg(msg)
}
