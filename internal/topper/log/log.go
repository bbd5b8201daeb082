package log

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"topper/internal/logging"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
	logger      *logging.LoggerCloser
)

// Setup installs the default slog logger. logFile and debug override the
// TOPPER_LOG_* settings.
func Setup(logFile string, debug bool) error {
	var err error
	initOnce.Do(func() {
		opts := logging.OptionsFromEnv()
		if logFile != "" {
			opts.File = logFile
		}
		if debug {
			opts = opts.WithDebug()
		}

		logger, err = opts.Open()
		if err != nil {
			return
		}
		slog.SetDefault(slog.New(logger.Logger))
		initialized.Store(true)
	})
	return err
}

func Initialized() bool {
	return initialized.Load()
}

// Close releases the log file opened by Setup.
func Close() error {
	if logger == nil {
		return nil
	}
	return logger.Close()
}

func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		if Initialized() {
			slog.Error(fmt.Sprintf("Panic in %s", name),
				"panic", r,
				"stack", string(debug.Stack()))
		}
		if cleanup != nil {
			cleanup()
		}
	}
}
