package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want zapcore.Level
	}{
		{"default", Options{}, zapcore.InfoLevel},
		{"verbose", Options{Verbose: true}, zapcore.DebugLevel},
		{"quiet", Options{Quiet: true}, zapcore.WarnLevel},
		{"verbose wins", Options{Verbose: true, Quiet: true}, zapcore.DebugLevel},
		{"json", Options{Format: "json"}, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.opts)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			assert.False(t, logger.Core().Enabled(tt.want-1))
		})
	}
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.EqualError(t, err, `unknown log format "xml"`)
}
