package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/automation-creator/internal/host"
)

// Orchestrator submits descriptions to the host and resolves the outcome.
//
// Thread Safety: Submit is safe for concurrent use; it keeps no state
// between calls. Callers that need one submission at a time enforce it
// themselves.
type Orchestrator struct {
	conn     host.Connection
	policy   Policy
	logger   Logger
	recorder Recorder

	// sleep waits for d or until ctx ends. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates an orchestrator. A MaxFetchAttempts below 1 is raised to 1.
func New(conn host.Connection, policy Policy, logger Logger) *Orchestrator {
	if logger == nil {
		logger = noopLogger{}
	}
	if policy.MaxFetchAttempts < 1 {
		policy.MaxFetchAttempts = 1
	}
	return &Orchestrator{
		conn:   conn,
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
		now:    time.Now,
	}
}

// SetRecorder installs a recorder for submission telemetry. May be nil.
func (o *Orchestrator) SetRecorder(r Recorder) {
	o.recorder = r
}

// Policy returns the polling policy in use.
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Submit runs one submission to completion.
//
// It issues exactly one creation call. If the response carries the
// generated text the outcome is KindSuccess with no fetch. Otherwise the
// fetch service is polled: once after InitialDelay, then after each
// RetryDelay, up to MaxFetchAttempts calls. A fetch error counts as an
// empty attempt. When the budget runs out the outcome is KindPendingFetch,
// since the automation has most likely been written.
//
// A rejected creation call resolves to KindFailure with the backend message
// and no fetch. A panic anywhere in the submission resolves to KindFailure.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (outcome Outcome) {
	start := o.now()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("submission panic recovered", "panic", r)
			outcome = Failure(fmt.Sprintf("Unexpected error while creating automation: %v", r))
		}
		o.logger.Info("submission resolved",
			"outcome", outcome.Kind.String(),
			"attempts", outcome.Attempts,
			"corroborated", outcome.Corroborated,
			"duration", o.now().Sub(start),
		)
		if o.recorder != nil {
			o.recorder.RecordSubmission(outcome, o.now().Sub(start))
		}
	}()

	resp, err := o.conn.CallService(ctx, Domain, ServiceCreate, map[string]any{
		"description": req.Description,
	})
	if err != nil {
		o.logger.Warn("creation call rejected", "error", err)
		return Failure(rejectionText(err))
	}

	if text, ok := extractResult(resp); ok {
		return Success(text)
	}

	return o.poll(ctx)
}

// poll fetches the generated text until it appears or the budget is spent.
func (o *Orchestrator) poll(ctx context.Context) Outcome {
	for attempt := 1; attempt <= o.policy.MaxFetchAttempts; attempt++ {
		delay := o.policy.RetryDelay
		if attempt == 1 {
			delay = o.policy.InitialDelay
		}
		if err := o.sleep(ctx, delay); err != nil {
			o.logger.Warn("polling interrupted", "attempt", attempt, "error", err)
			out := o.pending(ctx)
			out.Attempts = attempt - 1
			return out
		}

		resp, err := o.conn.CallService(ctx, Domain, ServiceFetch, map[string]any{})
		if err != nil {
			o.logger.Warn("fetch attempt failed", "attempt", attempt, "error", err)
			continue
		}
		if text, ok := extractResult(resp); ok {
			out := Success(text)
			out.Attempts = attempt
			return out
		}
		o.logger.Debug("fetch attempt empty", "attempt", attempt)
	}

	out := o.pending(ctx)
	out.Attempts = o.policy.MaxFetchAttempts
	return out
}

// pending builds a KindPendingFetch outcome, corroborated by the success
// notification when the host exposes its states.
func (o *Orchestrator) pending(ctx context.Context) Outcome {
	out := PendingFetch()

	// States must still answer after the submission context has ended.
	snap, err := o.conn.States(context.WithoutCancel(ctx))
	if err != nil {
		o.logger.Debug("cannot corroborate pending result", "error", err)
		return out
	}
	out.Corroborated = snap.Has(host.NotificationEntityID(SuccessNotificationID))
	return out
}

// extractResult returns the first non-blank result field in resp.
func extractResult(resp map[string]any) (string, bool) {
	for _, key := range resultKeys {
		if s, ok := resp[key].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// rejectionText picks the message shown for a rejected creation call.
func rejectionText(err error) string {
	switch {
	case errors.Is(err, host.ErrServiceNotFound):
		return "The automation creator service is not available"
	case errors.Is(err, host.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Timed out waiting for the automation creator"
	default:
		return host.RejectionMessage(err, genericFailure)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
