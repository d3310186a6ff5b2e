package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestExitCode(t *testing.T) {
	t.Run("Failure is logged, not fatal", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		code := exitCode(zap.New(core), errors.New("listen tcp :5000: address already in use"))

		assert.Equal(t, 1, code)
		entries := logs.FilterMessage("server exited").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	})

	t.Run("Clean stop", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		assert.Equal(t, 0, exitCode(zap.New(core), nil))
		assert.Equal(t, 1, logs.FilterMessage("server stopped").Len())
	})
}
