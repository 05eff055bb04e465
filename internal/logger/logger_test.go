package logger_test

import (
	"testing"

	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Levels(t *testing.T) {
	app := &config.AppConfig{Name: "fleet-finance", Environment: "development"}

	log, err := logger.NewLogger(&config.LoggingConfig{Level: "warn", Format: "console"}, app)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	log, err = logger.NewLogger(&config.LoggingConfig{Level: "bogus", Format: "json"}, app)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestWithJob_AddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := logger.WithCompany(logger.WithJob(zap.New(core), "invoice-cadence", "run-1", true), "acme")

	log.Info("done")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "invoice-cadence", fields["job"])
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, true, fields["dry_run"])
	assert.Equal(t, "acme", fields["company_id"])
}
