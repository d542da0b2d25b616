package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Console is the human-facing log: monitor reports and command echoes.
// It speaks the key/value logger shape the monitor and dispatcher expect.
type Console struct {
	logger zerolog.Logger
}

// NewConsole writes colourless, aligned lines to w.
func NewConsole(w io.Writer) *Console {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: time.TimeOnly,
	}
	return &Console{logger: zerolog.New(cw).With().Timestamp().Logger()}
}

// NewConsoleLogger wraps an existing zerolog logger.
func NewConsoleLogger(logger zerolog.Logger) *Console {
	return &Console{logger: logger}
}

func (c *Console) Debug(msg string, keysAndValues ...any) {
	c.logger.Debug().Fields(toFields(keysAndValues)).Msg(msg)
}

func (c *Console) Info(msg string, keysAndValues ...any) {
	c.logger.Info().Fields(toFields(keysAndValues)).Msg(msg)
}

func (c *Console) Warn(msg string, keysAndValues ...any) {
	c.logger.Warn().Fields(toFields(keysAndValues)).Msg(msg)
}

func (c *Console) Error(msg string, keysAndValues ...any) {
	c.logger.Error().Fields(toFields(keysAndValues)).Msg(msg)
}

// toFields drops a trailing key without a value and any non-string key.
func toFields(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}
