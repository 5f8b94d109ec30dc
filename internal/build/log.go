package build

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// LogConfig holds the logging configuration shared by both binaries.
type LogConfig struct {
	// LogDir is the directory the rotating log file is written to. When
	// empty, file logging is disabled and records only go to stderr.
	LogDir string

	// Level is the log level name (trace, debug, info, warn, error,
	// critical, off).
	Level string

	// Rotator configures the log file rotator. Nil means defaults.
	Rotator *LogRotatorConfig
}

// SetupLoggers builds the root handler set for the process: a stderr
// console handler, plus a rotating file handler when a log directory is
// configured. It returns the root set, from which per-package subsystem
// loggers are derived, and a cleanup function flushing the file rotator.
func SetupLoggers(cfg *LogConfig) (*HandlerSet, func(), error) {
	handlers := []btclogv2.Handler{
		btclogv2.NewDefaultHandler(os.Stderr),
	}

	cleanup := func() {}

	if cfg.LogDir != "" {
		rotCfg := cfg.Rotator
		if rotCfg == nil {
			rotCfg = DefaultLogRotatorConfig()
		}
		rotCfg.LogDir = cfg.LogDir

		writer := NewRotatingLogWriter()
		if err := writer.InitLogRotator(rotCfg); err != nil {
			return nil, nil, fmt.Errorf(
				"failed to init log rotator: %w", err,
			)
		}

		handlers = append(handlers, btclogv2.NewDefaultHandler(writer))
		cleanup = func() {
			_ = writer.Close()
		}
	}

	root := NewHandlerSet(handlers...)

	if cfg.Level != "" {
		level, ok := btclog.LevelFromString(cfg.Level)
		if !ok {
			cleanup()
			return nil, nil, fmt.Errorf(
				"unknown log level %q", cfg.Level,
			)
		}
		root.SetLevel(level)
	}

	return root, cleanup, nil
}

// NewSubLogger derives a logger for the given subsystem tag from the root
// handler set.
func NewSubLogger(root *HandlerSet, tag string) btclogv2.Logger {
	return btclogv2.NewSLogger(root.SubSystem(tag))
}

// ApplyLoggers hands each package its subsystem logger. The hooks map
// subsystem tags to the UseLogger functions of the packages owning them;
// binaries assemble the map at startup to avoid import cycles through this
// package.
func ApplyLoggers(root *HandlerSet, hooks map[string]func(btclogv2.Logger)) {
	for tag, use := range hooks {
		use(NewSubLogger(root, tag))
	}
}
