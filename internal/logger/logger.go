package logger

import (
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	KeyTag       = "tag"
	KeyProcess   = "process"
	KeyRequestID = "requestId"
	KeyTraceID   = "traceId"
	KeySpanID    = "spanId"
	KeyUserID    = "userId"
	KeyProductID = "productId"
)

type Config struct {
	Level string
	// File enables a rotated file sink next to stdout.
	File string
	Env  string
}

// New builds the process logger. Unknown levels fall back to info, or trace in
// development.
func New(cfg Config) zerolog.Logger {
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimestampFieldName = "timestamp"
	zerolog.MessageFieldName = "message"

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
		if cfg.Env == "development" {
			level = zerolog.TraceLevel
		}
	}

	var out io.Writer = os.Stdout
	if cfg.Env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	if cfg.File != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}

	return zerolog.New(out).
		Level(level).
		Hook(TraceHook()).
		With().
		Timestamp().
		Caller().
		Str("app", "shopcart").
		Logger()
}
