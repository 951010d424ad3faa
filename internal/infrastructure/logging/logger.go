package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-ble/internal/infrastructure/config"
)

// ServiceName is attached to every log entry as the "service" field.
const ServiceName = "graylogic-ble"

// AppearanceKey is the attribute key whose integer values are rendered as
// four-digit hex, the way GAP appearance codes are written in the
// assigned-numbers tables.
const AppearanceKey = "appearance"

// Logger is the process-wide structured logger. It embeds *slog.Logger, so
// Debug, Info, Warn and Error take alternating key/value pairs.
//
// *Logger satisfies the narrow Logger interfaces declared by the gatt, gap,
// device, identity, bleproxy and mqtt packages.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of config.yaml. Entries
// carry the service name and the given build version.
func New(cfg config.LoggingConfig, version string) *Logger {
	return newWithWriter(cfg, version, outputFor(cfg.Output))
}

// Default is the logger used before config.yaml has been read: JSON on
// stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

// With returns a child logger that adds args to every entry.
//
//	log.With("component", "bleproxy").Info("started")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func outputFor(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

func newWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: replaceAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	return &Logger{Logger: slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("version", version),
	)}
}

// replaceAttr renders appearance codes as hex. Other attributes pass
// through unchanged.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key != AppearanceKey {
		return a
	}
	switch a.Value.Kind() {
	case slog.KindUint64:
		return slog.String(a.Key, fmt.Sprintf("0x%04X", a.Value.Uint64()))
	case slog.KindInt64:
		if v := a.Value.Int64(); v >= 0 {
			return slog.String(a.Key, fmt.Sprintf("0x%04X", v))
		}
	}
	return a
}

// parseLevel maps debug, info, warn (or warning) and error onto slog
// levels. Anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
