// Package purge implements the authorization-gated bulk-deletion
// workflow for the content store.
package purge

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"tmphost/internal/core"
	"tmphost/internal/journal"
	"tmphost/internal/observability"
	"tmphost/internal/store"
)

// Outcome classifies one deletion request.
type Outcome string

const (
	// OutcomeDisabled means no deletion password is configured.
	// The request is a no-op, logged but not reported as a fault.
	OutcomeDisabled Outcome = "disabled"
	// OutcomeUnauthorized means the requester is not the super-user.
	OutcomeUnauthorized Outcome = "unauthorized"
	// OutcomeRefused means the password did not match. Refused
	// silently; the reply never hints how close the guess was.
	OutcomeRefused Outcome = "refused"
	// OutcomeCompleted means the purge ran (possibly with
	// per-object failures).
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed means the request was authorized but the purge
	// never ran because the store could not be enumerated.
	OutcomeFailed Outcome = "failed"
)

// Purger runs the bulk-deletion workflow.
type Purger struct {
	store     store.Store
	journal   journal.Recorder
	metrics   *observability.Metrics
	password  string
	superUser core.Identity
}

// New creates a Purger. An empty password disables the workflow.
func New(st store.Store, rec journal.Recorder, metrics *observability.Metrics, password string, superUser core.Identity) *Purger {
	return &Purger{
		store:     st,
		journal:   rec,
		metrics:   metrics,
		password:  password,
		superUser: superUser,
	}
}

// Request authorizes and, on success, purges every object in the
// content store except the protected set. Each deletion is
// individually best-effort: one undeletable object never aborts the
// rest, and progress is reported per object.
func (p *Purger) Request(ctx context.Context, traceID string, identity core.Identity, supplied string, reply core.Replier) (Outcome, error) {
	log := slog.With("trace_id", traceID, "identity", identity)

	if p.password == "" {
		log.Info("deletion requested but the workflow is disabled")
		return OutcomeDisabled, nil
	}

	if identity != p.superUser {
		log.Warn("deletion refused: not the designated super-user")
		_ = reply.Reply(ctx, "you are not allowed to do that")
		return OutcomeUnauthorized, nil
	}

	if subtle.ConstantTimeCompare([]byte(supplied), []byte(p.password)) != 1 {
		log.Warn("deletion refused: wrong password")
		return OutcomeRefused, nil
	}

	paths, err := p.store.List(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to enumerate store: %w", err)
	}

	removed, failed := 0, 0
	for _, path := range paths {
		if err := p.store.Remove(ctx, path); err != nil {
			failed++
			log.Warn("failed to delete object", "path", path, "error", err)
			_ = reply.Reply(ctx, "failed to delete "+path)
			continue
		}
		removed++
		_ = reply.Reply(ctx, "deleted "+path)
	}

	p.metrics.ObservePurge(removed, failed)
	if err := p.journal.Record(ctx, &journal.Entry{
		ID:        traceID,
		Event:     journal.EventPurge,
		Timestamp: time.Now().UTC(),
		Identity:  string(identity),
		Removed:   removed,
		Failed:    failed,
	}); err != nil {
		log.Warn("failed to journal purge", "error", err)
	}

	log.Info("purge complete", "removed", removed, "failed", failed)
	_ = reply.Reply(ctx, fmt.Sprintf("deleted %d objects (%d failed)", removed, failed))
	return OutcomeCompleted, nil
}
