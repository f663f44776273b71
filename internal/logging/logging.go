// Package logging configures zerolog output for a co-simulation node.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// parseLevel converts a string log level to a zerolog level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a logger for the named node writing to the console and,
// if logsDir is non-empty, to a per-node log file. The returned closer
// is nil when no file was opened.
func New(node, level, logsDir string) (zerolog.Logger, io.Closer, error) {
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	writers := []io.Writer{console}
	var closer io.Closer

	if logsDir != "" {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("creating logs directory: %w", err)
		}
		path := filepath.Join(logsDir, fmt.Sprintf("%s.log", strings.ToLower(node)))
		file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, file)
		closer = file
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(level)).
		With().Timestamp().Str("node", node).Logger()

	return logger, closer, nil
}
