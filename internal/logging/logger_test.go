package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		enabled zapcore.Level
		off     zapcore.Level
	}{
		{name: "development", cfg: Config{Development: true}, enabled: zapcore.DebugLevel, off: zapcore.DebugLevel - 1},
		{name: "production", cfg: Config{}, enabled: zapcore.InfoLevel, off: zapcore.DebugLevel},
		{name: "explicit level", cfg: Config{Level: "warn"}, enabled: zapcore.WarnLevel, off: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := New(tt.cfg)
			require.NoError(t, err)
			defer logger.Sync() //nolint:errcheck // best-effort flush
			require.True(t, logger.Core().Enabled(tt.enabled))
			require.False(t, logger.Core().Enabled(tt.off))
		})
	}
}

func TestNewBadLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Level: "loud"})
	require.ErrorContains(t, err, "parse log level")
}
