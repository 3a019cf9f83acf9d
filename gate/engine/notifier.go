package engine

import (
	"context"

	"github.com/humancheck/gatekeeper/gate/record"
)

const (
	EventBan      = "ban"
	EventOverride = "override"
	EventFailed   = "failed"
)

// Summary of a noteworthy gate action, for humans watching a channel.
type AuditEvent struct {
	Kind     string
	Username string
	// moderator who took the action; empty for automated actions
	Actor     string
	Status    record.Status
	Reasons   []string
	ContentID string
}

// Interface for a type that can send out-of-band notifications about gate actions
type Notifier interface {
	SendEvent(ctx context.Context, evt AuditEvent) error
}

// best-effort: failures are logged, never returned
func (eng *Engine) notify(ctx context.Context, evt AuditEvent) {
	if eng.Notifier == nil {
		return
	}
	if err := eng.Notifier.SendEvent(ctx, evt); err != nil {
		eng.Logger.Error("failed to send audit notification", "err", err, "kind", evt.Kind, "username", evt.Username)
	}
}
