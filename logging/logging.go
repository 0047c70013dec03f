// Package logging builds the zap logger shared by the CLI and its components.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Options struct {
	// Verbose lowers the level to debug.
	Verbose bool
	// Format is "console" (default) or "json".
	Format string
	// Output defaults to stderr.
	Output io.Writer
}

// New returns a logger writing to Options.Output at info level, or debug when
// verbose.
func New(o Options) (*zap.Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(o.Format) {
	case "", FormatConsole:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unsupported log format %q (want %s or %s)", o.Format, FormatConsole, FormatJSON)
	}

	level := zapcore.InfoLevel
	if o.Verbose {
		level = zapcore.DebugLevel
	}

	out := o.Output
	if out == nil {
		out = os.Stderr
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.ErrorOutput(zapcore.AddSync(out))), nil
}
