// Package harvest runs the catalog walk: pagination, bounded detail
// fetching, extraction, and upserts, with every run recorded as a session.
package harvest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/solidarity-tools/harvest-cli/internal/model"
	"github.com/solidarity-tools/harvest-cli/internal/resilience"
	"github.com/solidarity-tools/harvest-cli/internal/store"
)

// Tracker accumulates accounting for one harvest run. Counter methods are
// safe to call from concurrent workers. Finalize persists the outcome
// exactly once; a second call is a programming error and returns an error
// rather than silently overwriting the record.
type Tracker struct {
	store store.Store
	id    string
	start time.Time

	totalFound atomic.Int64
	successful atomic.Int64
	failed     atomic.Int64

	mu     sync.Mutex
	errs   []model.SessionError
	doneAt time.Time

	finalized atomic.Bool
	failedRun atomic.Bool
}

// StartSession creates a running session record and returns its tracker.
func StartSession(ctx context.Context, st store.Store) (*Tracker, error) {
	t := &Tracker{
		store: st,
		id:    uuid.New().String(),
		start: time.Now().UTC(),
	}
	sess := &model.HarvestSession{
		ID:        t.id,
		Status:    model.SessionStatusRunning,
		StartedAt: t.start,
	}
	if err := st.CreateSession(ctx, sess); err != nil {
		return nil, eris.Wrap(err, "harvest: create session")
	}
	return t, nil
}

// SessionID returns the identifier of the tracked session.
func (t *Tracker) SessionID() string {
	return t.id
}

// AddFound counts newly admitted items.
func (t *Tracker) AddFound(n int) {
	t.totalFound.Add(int64(n))
}

// RecordSuccess counts one committed item.
func (t *Tracker) RecordSuccess() {
	t.successful.Add(1)
}

// RecordFailure counts one failed item and appends its error record,
// classified as transient or permanent.
func (t *Tracker) RecordFailure(opid string, err error) {
	t.failed.Add(1)

	reason := resilience.ClassifyError(err) + ": " + err.Error()
	t.mu.Lock()
	t.errs = append(t.errs, model.SessionError{
		Opid:       opid,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})
	t.mu.Unlock()
}

// Snapshot returns the session record with the current counters.
func (t *Tracker) Snapshot() *model.HarvestSession {
	t.mu.Lock()
	errs := make([]model.SessionError, len(t.errs))
	copy(errs, t.errs)
	var completedAt *time.Time
	if !t.doneAt.IsZero() {
		done := t.doneAt
		completedAt = &done
	}
	t.mu.Unlock()

	status := model.SessionStatusRunning
	if t.finalized.Load() {
		if t.failedRun.Load() {
			status = model.SessionStatusFailed
		} else {
			status = model.SessionStatusCompleted
		}
	}
	return &model.HarvestSession{
		ID:          t.id,
		Status:      status,
		StartedAt:   t.start,
		CompletedAt: completedAt,
		TotalFound:  int(t.totalFound.Load()),
		Successful:  int(t.successful.Load()),
		Failed:      int(t.failed.Load()),
		Errors:      errs,
	}
}

// Finalize persists the session's terminal state. ok selects `completed`;
// an aborted run finalizes as `failed`. Returns an error on a second call.
func (t *Tracker) Finalize(ctx context.Context, ok bool) error {
	if !t.finalized.CompareAndSwap(false, true) {
		return eris.Errorf("harvest: session %s already finalized", t.id)
	}
	t.failedRun.Store(!ok)

	t.mu.Lock()
	t.doneAt = time.Now().UTC()
	t.mu.Unlock()

	if err := t.store.UpdateSession(ctx, t.Snapshot()); err != nil {
		return eris.Wrapf(err, "harvest: finalize session %s", t.id)
	}
	return nil
}
