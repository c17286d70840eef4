package leave

import (
	"context"

	"go.uber.org/zap"

	"github.com/warp/entitlement-engine/generic"
)

// auditor records one audit entry per public operation and logs failures.
// Recording problems are logged and swallowed: the sink is observability
// only and never changes an operation's outcome.
type auditor struct {
	log    generic.AuditLog
	logger *zap.Logger
	newID  func() string
}

func (a auditor) record(ctx context.Context, action generic.AuditAction, entity string, before, after any, opErr error, description string) {
	entry := generic.AuditEntry{
		ID:          a.newID(),
		Timestamp:   wallClock(),
		Action:      action,
		Entity:      entity,
		ActorID:     generic.ActorFrom(ctx),
		Before:      before,
		Description: description,
		StatusCode:  generic.StatusCode(opErr),
	}
	if opErr != nil {
		entry.Error = opErr.Error()
		level := a.logger.Warn
		if entry.StatusCode >= 500 {
			level = a.logger.Error
		}
		level("leave operation failed",
			zap.String("action", string(action)),
			zap.String("actor", entry.ActorID),
			zap.Int("status", entry.StatusCode),
			zap.Error(opErr))
	} else {
		entry.After = after
	}

	// The operation's context may already be cancelled; the entry is still wanted.
	if err := a.log.Record(context.WithoutCancel(ctx), entry); err != nil {
		a.logger.Error("failed to record audit entry",
			zap.String("action", string(action)),
			zap.Error(err))
	}
}
