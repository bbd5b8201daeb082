// Package logging builds the charmbracelet logger behind topper's slog
// default. Settings come from TOPPER_LOG_* variables, overridden by the
// command line.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultPrefix starts every record unless TOPPER_LOG_PREFIX is set.
const DefaultPrefix = "topper "

// LoggerCloser is a logger that owns its output file, if any.
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the log file. Loggers writing to a caller's writer have
// nothing to close.
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// Options configure a logger.
type Options struct {
	Level  log.Level
	Prefix string
	// File receives records instead of stderr when set.
	File string
	// Caller adds the source position to each record.
	Caller bool
}

// OptionsFromEnv reads TOPPER_LOG_LEVEL (debug, info, warn, error),
// TOPPER_LOG_PREFIX and TOPPER_LOG_TO_FILE. The latter set to "1" selects
// a timestamped file in the working directory.
func OptionsFromEnv() Options {
	opts := Options{
		Level:  ParseLevel(os.Getenv("TOPPER_LOG_LEVEL")),
		Prefix: os.Getenv("TOPPER_LOG_PREFIX"),
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if os.Getenv("TOPPER_LOG_TO_FILE") == "1" {
		opts.File = fmt.Sprintf("topper-%s-debug.log", time.Now().Format("20060102-150405"))
	}
	return opts
}

// WithDebug returns opts at debug level with caller reporting.
func (o Options) WithDebug() Options {
	o.Level = log.DebugLevel
	o.Caller = true
	return o
}

// ParseLevel maps a level name to a log level, defaulting to info.
func ParseLevel(name string) log.Level {
	switch name {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Open creates the logger, opening o.File for appending when set.
func (o Options) Open() (*LoggerCloser, error) {
	if o.File == "" {
		return New(os.Stderr, o), nil
	}
	f, err := os.OpenFile(o.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	lc := New(f, o)
	lc.closer = f
	return lc, nil
}

// New returns a logger writing to w. The caller keeps ownership of w.
func New(w io.Writer, o Options) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		ReportCaller:    o.Caller,
		Level:           o.Level,
		Prefix:          o.Prefix,
	})
	return &LoggerCloser{Logger: lg}
}
