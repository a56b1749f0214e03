// Package logging configures the structured logger used throughout Virga.
// Output is zerolog JSON to a per-user log file; console output is reserved
// for the CLI's own rendering so logs never interleave with tables.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	Level     string // trace, debug, info, warn, error
	LogDir    string // directory for virga.log; empty disables file output
	Console   bool   // also write human-readable output to stderr
	Component string // tag attached to every event
}

// New builds a logger from the given options. A bad level falls back to info.
func New(opts Options) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer

	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0700); err != nil {
			return zerolog.Nop(), fmt.Errorf("creating log directory: %w", err)
		}
		path := filepath.Join(opts.LogDir, "virga.log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, f)
	}

	if opts.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if len(writers) == 0 {
		return zerolog.Nop(), nil
	}

	var out io.Writer
	if len(writers) == 1 {
		out = writers[0]
	} else {
		out = zerolog.MultiLevelWriter(writers...)
	}

	component := opts.Component
	if component == "" {
		component = "virga"
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()

	return logger, nil
}

// RedactARN trims an ARN to its resource suffix so full account paths do not
// land in log files. "arn:aws:iam::123456789012:role/Admin" -> "role/Admin".
func RedactARN(arn string) string {
	idx := strings.LastIndex(arn, ":")
	if idx < 0 || idx == len(arn)-1 {
		return arn
	}
	return arn[idx+1:]
}

// RedactID keeps the first 8 characters of an identifier for correlation.
func RedactID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
