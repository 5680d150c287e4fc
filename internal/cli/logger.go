package cli

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the process logger and installs it as the zap global so
// packages that log through zap.L() share it.
func newLogger(debug bool) (*zap.Logger, func(), error) {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.EncoderConfig.EncodeCaller = func(
		caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		p := caller.TrimmedPath()
		if len(p) > 30 {
			p = "..." + p[len(p)-27:]
		}
		enc.AppendString(fmt.Sprintf("%30s", p))
	}
	if !debug {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	log, err := c.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed building logger: %w", err)
	}
	restore := zap.ReplaceGlobals(log)

	return log, func() {
		_ = log.Sync()
		restore()
	}, nil
}
