// Package logging builds the process logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/rs/zerolog"

	"github.com/KirkDiggler/streamclient/internal/errors"
)

// Formats accepted by Config.Format
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects the level and output format of the logger
type Config struct {
	Level  string
	Format string
	// Output defaults to stderr
	Output io.Writer
}

// New creates a zerolog logger from cfg
func New(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), errors.InvalidArgumentf("unknown log level %q", cfg.Level)
		}
		level = parsed
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var writer io.Writer
	switch cfg.Format {
	case "", FormatConsole:
		writer = zerolog.ConsoleWriter{Out: out}
	case FormatJSON:
		writer = out
	default:
		return zerolog.Nop(), errors.InvalidArgumentf("unknown log format %q", cfg.Format)
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// GRPCLogger adapts a zerolog logger to the grpc-middleware logging interceptors
func GRPCLogger(logger zerolog.Logger) grpc_logging.Logger {
	return grpc_logging.LoggerFunc(func(ctx context.Context, level grpc_logging.Level, msg string, fields ...any) {
		var event *zerolog.Event
		switch level {
		case grpc_logging.LevelDebug:
			event = logger.Debug()
		case grpc_logging.LevelWarn:
			event = logger.Warn()
		case grpc_logging.LevelError:
			event = logger.Error()
		default:
			event = logger.Info()
		}

		for i := 0; i+1 < len(fields); i += 2 {
			key, ok := fields[i].(string)
			if !ok {
				key = fmt.Sprint(fields[i])
			}
			event = event.Interface(key, fields[i+1])
		}
		event.Msg(msg)
	})
}
