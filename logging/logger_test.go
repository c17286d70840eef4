package logging_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/entitlement-engine/config"
	"github.com/warp/entitlement-engine/generic"
	"github.com/warp/entitlement-engine/logging"
)

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "engine.log")

	logger, err := logging.NewLogger(config.LoggerConfig{Level: "warn", OutputPath: path, Format: "json"})
	require.NoError(t, err)

	logger.Info("dropped below level")
	logger.Warn("kept", zap.String("year", "2025"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped below level")
	assert.Contains(t, string(data), `"msg":"kept"`)
	assert.Contains(t, string(data), `"year":"2025"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := logging.NewLogger(config.LoggerConfig{Level: "loud", OutputPath: "stderr", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestAuditLogger_LevelFollowsOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	audit := logging.NewAuditLogger(zap.New(core))

	// GIVEN: one success and one failure
	ok := generic.AuditEntry{
		Timestamp:   time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Action:      generic.AuditBalancesGenerated,
		Entity:      "leave_balance",
		ActorID:     "hr-admin",
		Description: "generated 4 balances for 2025",
		StatusCode:  200,
	}
	failed := ok
	failed.StatusCode = 404
	failed.Error = "leave year not found"
	failed.Description = "failed to generate balances"

	// WHEN: both are recorded
	require.NoError(t, audit.Record(context.Background(), ok))
	require.NoError(t, audit.Record(context.Background(), failed))

	// THEN: success at info, failure at warn with the error attached
	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "audit", entries[0].LoggerName)
	assert.Equal(t, "hr-admin", entries[0].ContextMap()["actor"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "leave year not found", entries[1].ContextMap()["error"])
}

func TestAuditLogger_FailureCarriesBeforePayload(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	audit := logging.NewAuditLogger(zap.New(core))

	// GIVEN: a failed operation with its input as the before payload
	input := map[string]string{"employee_id": "emp-9", "year": "2025"}
	entry := generic.AuditEntry{
		Action:      generic.AuditBalanceCreated,
		Entity:      "leave_balance",
		ActorID:     "hr-admin",
		Before:      input,
		Description: "create Vacation Leave balance for employee emp-9",
		StatusCode:  404,
		Error:       "employee not found: emp-9",
	}

	// WHEN: it is recorded
	require.NoError(t, audit.Record(context.Background(), entry))

	// THEN: the warning carries the input and no after payload
	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, input, fields["before"])
	assert.NotContains(t, fields, "after")
}

type failingSink struct{ calls int }

func (f *failingSink) Record(context.Context, generic.AuditEntry) error {
	f.calls++
	return errors.New("sink down")
}

func TestTee_AttemptsEverySink(t *testing.T) {
	first := &failingSink{}
	second := &failingSink{}

	err := logging.Tee{first, nil, second}.Record(context.Background(), generic.AuditEntry{StatusCode: 200})

	assert.EqualError(t, err, "sink down")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}
