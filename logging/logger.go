// Package logging builds the zap loggers used across the engine and adapts
// them to the audit sink interface.
package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/entitlement-engine/config"
	"github.com/warp/entitlement-engine/generic"
)

// NewLogger creates a structured logger from cfg.
func NewLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	jsonFormat := strings.EqualFold(cfg.Format, "json")

	var encoderConfig zapcore.EncoderConfig
	if jsonFormat {
		encoderConfig = zap.NewProductionEncoderConfig()
	} else {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	writeSyncer, err := openOutput(cfg.OutputPath)
	if err != nil {
		return nil, err
	}

	var encoder zapcore.Encoder
	if jsonFormat {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func openOutput(path string) (zapcore.WriteSyncer, error) {
	switch path {
	case "stdout", "":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(file), nil
}

// =============================================================================
// AUDIT SINKS
// =============================================================================

// AuditLogger writes audit entries as structured log lines.
type AuditLogger struct {
	logger *zap.Logger
}

func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogger{logger: logger.Named("audit")}
}

func (a *AuditLogger) Record(_ context.Context, e generic.AuditEntry) error {
	fields := []zap.Field{
		zap.String("action", string(e.Action)),
		zap.String("entity", e.Entity),
		zap.String("actor", e.ActorID),
		zap.Int("status", e.StatusCode),
		zap.Time("at", e.Timestamp),
	}
	if e.Before != nil {
		fields = append(fields, zap.Any("before", e.Before))
	}
	if e.After != nil {
		fields = append(fields, zap.Any("after", e.After))
	}
	if !e.Succeeded() {
		fields = append(fields, zap.String("error", e.Error))
		a.logger.Warn(e.Description, fields...)
		return nil
	}
	a.logger.Info(e.Description, fields...)
	return nil
}

// Tee fans an entry out to several sinks. Every sink is attempted; the
// first error is returned.
type Tee []generic.AuditLog

func (t Tee) Record(ctx context.Context, e generic.AuditEntry) error {
	var first error
	for _, sink := range t {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
