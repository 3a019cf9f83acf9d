package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/humancheck/gatekeeper/gate/cachestore"
	"github.com/humancheck/gatekeeper/gate/countstore"
	"github.com/humancheck/gatekeeper/gate/flagstore"
	"github.com/humancheck/gatekeeper/gate/machine"
	"github.com/humancheck/gatekeeper/gate/platform"
	"github.com/humancheck/gatekeeper/gate/policy"
	"github.com/humancheck/gatekeeper/gate/record"
	"github.com/humancheck/gatekeeper/gate/recordstore"
	"github.com/humancheck/gatekeeper/gate/setstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("gatekeeper")

// how many times an optimistic read-modify-write is attempted before giving up
var maxWriteAttempts = 5

// Runtime for the verification gate: loads records and policy, runs state machine transitions and
// enforcement decisions, persists results, and executes the resulting directives.
//
// Several fields must not be nil: Logger, Records, Policies, Platform, Machine, Counters, Flags.
// The rest are optional.
type Engine struct {
	Logger   *slog.Logger
	Records  recordstore.RecordStore
	Policies policy.Provider
	Platform platform.Client
	Machine  *machine.Machine
	// permission checks for operator actions; nil allows everything
	Perms    PermissionChecker
	Counters countstore.CountStore
	Flags    flagstore.FlagStore
	Sets     setstore.SetStore
	Cache    cachestore.CacheStore
	Notifier Notifier
	// defaults to time.Now
	Clock func() time.Time
	// use version-checked writes for every record update, retrying the whole read-modify-write
	// cycle on conflict. Without this, concurrent updates to the same record are last-write-wins.
	OptimisticWrites bool
}

func (eng *Engine) now() time.Time {
	if eng.Clock != nil {
		return eng.Clock()
	}
	return time.Now()
}

func (eng *Engine) policy(ctx context.Context) (*policy.Policy, error) {
	if eng.Policies == nil {
		p := policy.Default()
		return &p, nil
	}
	pol, err := eng.Policies.Policy(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading enforcement policy: %w", err)
	}
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	return pol, nil
}

// Loads the stored record for a user, returning nil (not an error) when there isn't one.
func (eng *Engine) loadRecord(ctx context.Context, username string) (*record.Record, error) {
	rec, err := eng.Records.Get(ctx, username)
	if errors.Is(err, record.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading verification record: %w", err)
	}
	return rec, nil
}

// Read-modify-write of a single user's record.
//
// fn gets the current record (nil when none is stored) and returns the record to store. Returning
// the same pointer it was given skips the write; returning nil deletes the stored record. With
// OptimisticWrites, fn may be called several times and must not have side-effects.
func (eng *Engine) mutate(ctx context.Context, username string, fn func(prev *record.Record) (*record.Record, error)) (*record.Record, error) {
	attempts := 1
	if eng.OptimisticWrites {
		attempts = maxWriteAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		var prev, next *record.Record
		prev, err = eng.loadRecord(ctx, username)
		if err != nil {
			return nil, err
		}
		next, err = fn(prev)
		if err != nil {
			return nil, err
		}
		if next == prev && prev != nil {
			return prev, nil
		}
		if next == nil {
			if prev == nil {
				return nil, nil
			}
			if err = eng.Records.Delete(ctx, username); err != nil {
				return nil, fmt.Errorf("deleting verification record: %w", err)
			}
			return nil, nil
		}

		if !eng.OptimisticWrites {
			err = eng.Records.Put(ctx, next)
		} else {
			var expected int64
			if prev != nil {
				expected = prev.Version
			}
			err = eng.Records.PutIfVersion(ctx, next, expected)
			if errors.Is(err, record.ErrVersionConflict) {
				writeConflictCount.Inc()
				eng.Logger.Info("verification record write conflict, retrying", "username", username, "attempt", i+1)
				continue
			}
		}
		if err != nil {
			return nil, fmt.Errorf("storing verification record: %w", err)
		}
		if prev != nil && prev.Status != next.Status {
			statusTransitionCount.WithLabelValues(string(prev.Status), string(next.Status)).Inc()
		} else if prev == nil {
			statusTransitionCount.WithLabelValues(string(record.StatusUnverified), string(next.Status)).Inc()
		}
		return next, nil
	}
	return nil, err
}

// Persists any lazy timeout transition for the user, and returns the current record (nil if the
// user has none).
func (eng *Engine) refresh(ctx context.Context, username string, pol *policy.Policy) (*record.Record, error) {
	return eng.mutate(ctx, username, func(prev *record.Record) (*record.Record, error) {
		next, _ := machine.RefreshIfTimedOut(prev, pol, eng.now())
		return next, nil
	})
}

// Stores the notification thread id for a user, if they don't have one already.
func (eng *Engine) saveConversationID(ctx context.Context, username, convID string) (*record.Record, error) {
	return eng.mutate(ctx, username, func(prev *record.Record) (*record.Record, error) {
		if prev == nil || convID == "" || prev.NotificationConversationID != "" {
			return prev, nil
		}
		next := prev.Clone()
		next.NotificationConversationID = convID
		return next, nil
	})
}

// Starts a span and a timer for an engine entry point. The returned func must be called with the
// final error.
func (eng *Engine) begin(ctx context.Context, op, username string) (context.Context, func(err error)) {
	ctx, span := tracer.Start(ctx, "Engine."+op, trace.WithAttributes(attribute.String("username", username)))
	start := time.Now()
	eventProcessCount.WithLabelValues(op).Inc()
	return ctx, func(err error) {
		eventProcessDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			eventErrorCount.WithLabelValues(op).Inc()
			span.RecordError(err)
		}
		span.End()
	}
}

// similar to an HTTP server, we want to recover from any panics in event processing
func (eng *Engine) recoverPanic(op, username string, err *error) {
	if r := recover(); r != nil {
		eng.Logger.Error("gatekeeper event execution exception", "err", r, "op", op, "username", username)
		*err = fmt.Errorf("panic during %s: %v", op, r)
	}
}

func checkUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: missing username", record.ErrValidation)
	}
	return nil
}
