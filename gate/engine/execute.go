package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/humancheck/gatekeeper/gate/countstore"
	"github.com/humancheck/gatekeeper/gate/directive"
	"github.com/humancheck/gatekeeper/gate/policy"
	"github.com/humancheck/gatekeeper/gate/record"
)

// counter names
const (
	CounterRemovals = "gate-removal"
	CounterBans     = "gate-ban"
	CounterQuota    = "gate-quota"
)

// Runs directives against the platform, in order.
//
// Every directive is attempted even if earlier ones fail, and nothing is rolled back. Failures are
// logged and returned together, wrapping record.ErrExternal. The returned conversation id is that
// of the first notification thread created by this batch (empty if none was), for the caller to
// persist; later notifications in the same batch append to it.
func (eng *Engine) execute(ctx context.Context, dirs []directive.Directive) (string, error) {
	ctx, span := tracer.Start(ctx, "Engine.execute")
	defer span.End()

	var errs []error
	created := ""
	for _, d := range dirs {
		logger := eng.Logger.With("username", d.Username, "directive", d.Kind)
		directiveCount.WithLabelValues(string(d.Kind)).Inc()
		var err error
		switch d.Kind {
		case directive.KindNotifyUser:
			convID := d.ConversationID
			if convID == "" {
				convID = created
			}
			var out string
			out, err = eng.Platform.SendOrAppendMessage(ctx, convID, d.Username, d.Subject, d.Body)
			if err != nil {
				break
			}
			if convID == "" && out != "" {
				created = out
			}
			if d.Archive && out != "" {
				err = eng.Platform.ArchiveConversation(ctx, out)
			}
		case directive.KindAuditNote:
			err = eng.Platform.AddModNote(ctx, d.Username, d.Reason, d.Label)
		case directive.KindRemoveContent:
			err = eng.Platform.RemoveContent(ctx, d.ContentID, d.AsSpam)
			if err == nil {
				eng.increment(ctx, CounterRemovals, d.Username)
			}
		case directive.KindReportContent:
			err = eng.Platform.ReportContent(ctx, d.ContentID, d.Reason)
		case directive.KindBanUser:
			err = eng.Platform.BanUser(ctx, d.Username, d.Reason, d.Message, d.ContentID)
			if err == nil {
				eng.increment(ctx, CounterBans, d.Username)
				eng.notify(ctx, AuditEvent{Kind: EventBan, Username: d.Username, Reasons: []string{d.Reason}, ContentID: d.ContentID})
			}
		default:
			err = fmt.Errorf("unhandled directive kind: %s", d.Kind)
		}
		if err != nil {
			directiveErrorCount.WithLabelValues(string(d.Kind)).Inc()
			logger.Error("failed to execute directive", "err", err, "contentID", d.ContentID)
			errs = append(errs, fmt.Errorf("%s for %s: %w", d.Kind, d.Username, err))
			continue
		}
		logger.Info("executed directive", "contentID", d.ContentID)
	}
	if len(errs) > 0 {
		err := fmt.Errorf("%w: %w", record.ErrExternal, errors.Join(errs...))
		span.RecordError(err)
		return created, err
	}
	return created, nil
}

func (eng *Engine) increment(ctx context.Context, name, val string) {
	if err := eng.Counters.Increment(ctx, name, val); err != nil {
		eng.Logger.Error("failed to increment counter", "err", err, "name", name, "val", val)
	}
}

// Checks the daily automated-ban quota, and counts the ban against it when allowed. A zero quota
// means no limit.
func (eng *Engine) allowBan(ctx context.Context, pol *policy.Policy, username string) (bool, error) {
	if pol.BanQuotaPerDay <= 0 {
		return true, nil
	}
	c, err := eng.Counters.GetCount(ctx, CounterQuota, "ban", countstore.PeriodDay)
	if err != nil {
		return false, err
	}
	if c >= pol.BanQuotaPerDay {
		banCircuitBreakCount.Inc()
		eng.Logger.Warn("CIRCUIT BREAKER: automated ban quota reached", "username", username, "quota", pol.BanQuotaPerDay)
		return false, nil
	}
	if err := eng.Counters.Increment(ctx, CounterQuota, "ban"); err != nil {
		return false, err
	}
	return true, nil
}

// Drops ban directives which would exceed the daily automated-ban quota.
func (eng *Engine) circuitBreakBans(ctx context.Context, pol *policy.Policy, dirs []directive.Directive) ([]directive.Directive, error) {
	out := make([]directive.Directive, 0, len(dirs))
	for _, d := range dirs {
		if d.Kind == directive.KindBanUser {
			ok, err := eng.allowBan(ctx, pol, d.Username)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, d)
	}
	return out, nil
}
