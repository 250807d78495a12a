// Package logging builds the zap logger shared by the symtab packages.
package logging

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/funvibe/symtab/internal/config"
)

// Logger is a zap logger whose level can be changed after construction.
type Logger struct {
	*zap.Logger
	Level zap.AtomicLevel
}

// New builds a logger from settings. The "json" format uses zap's
// production encoder; "console" uses the development one.
func New(cfg config.LogSettings) (*Logger, error) {
	level, err := zap.ParseAtomicLevel(levelName(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	var zc zap.Config
	switch cfg.Format {
	case "", "console":
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	case "json":
		zc = zap.NewProductionConfig()
		zc.Sampling = nil
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &Logger{Logger: logger, Level: level}, nil
}

// NewWriter builds a console logger that writes to w, for commands that
// want their diagnostics interleaved with their output.
func NewWriter(w io.Writer, level zapcore.Level) *Logger {
	atom := zap.NewAtomicLevelAt(level)
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), atom)
	return &Logger{Logger: zap.New(core), Level: atom}
}

// SetVerbose lowers the level to debug.
func (l *Logger) SetVerbose() { l.Level.SetLevel(zapcore.DebugLevel) }

func levelName(s string) string {
	if s == "" {
		return "info"
	}
	return s
}
