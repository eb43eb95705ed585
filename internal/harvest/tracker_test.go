package harvest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidarity-tools/harvest-cli/internal/model"
	"github.com/solidarity-tools/harvest-cli/internal/resilience"
	"github.com/solidarity-tools/harvest-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestStartSession_CreatesRunningRecord(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tracker, err := StartSession(ctx, st)
	require.NoError(t, err)
	require.NotEmpty(t, tracker.SessionID())

	sess, err := st.GetSession(ctx, tracker.SessionID())
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusRunning, sess.Status)
	assert.Nil(t, sess.CompletedAt)
}

func TestTracker_ConcurrentCounters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tracker, err := StartSession(ctx, st)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tracker.AddFound(1)
			if n%5 == 0 {
				tracker.RecordFailure("item", errors.New("boom"))
			} else {
				tracker.RecordSuccess()
			}
		}(i)
	}
	wg.Wait()

	snap := tracker.Snapshot()
	assert.Equal(t, 50, snap.TotalFound)
	assert.Equal(t, 40, snap.Successful)
	assert.Equal(t, 10, snap.Failed)
	assert.Len(t, snap.Errors, 10)
}

func TestTracker_RecordFailure_Classifies(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tracker, err := StartSession(ctx, st)
	require.NoError(t, err)

	tracker.RecordFailure("111", resilience.NewTransientError(errors.New("status 503"), 503))
	tracker.RecordFailure("222", errors.New("status 404"))

	snap := tracker.Snapshot()
	require.Len(t, snap.Errors, 2)
	assert.Equal(t, "111", snap.Errors[0].Opid)
	assert.Contains(t, snap.Errors[0].Reason, "transient:")
	assert.Equal(t, "222", snap.Errors[1].Opid)
	assert.Contains(t, snap.Errors[1].Reason, "permanent:")
	assert.False(t, snap.Errors[0].OccurredAt.IsZero())
}

func TestTracker_Finalize_Completed(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tracker, err := StartSession(ctx, st)
	require.NoError(t, err)
	tracker.AddFound(2)
	tracker.RecordSuccess()
	tracker.RecordSuccess()

	require.NoError(t, tracker.Finalize(ctx, true))

	sess, err := st.GetSession(ctx, tracker.SessionID())
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, sess.Status)
	require.NotNil(t, sess.CompletedAt)
	assert.Equal(t, 2, sess.TotalFound)
	assert.Equal(t, 2, sess.Successful)

	// The in-memory snapshot agrees with the stored record.
	snap := tracker.Snapshot()
	assert.Equal(t, model.SessionStatusCompleted, snap.Status)
	require.NotNil(t, snap.CompletedAt)
	assert.WithinDuration(t, *sess.CompletedAt, *snap.CompletedAt, time.Second)
}

func TestTracker_Finalize_Failed(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tracker, err := StartSession(ctx, st)
	require.NoError(t, err)

	require.NoError(t, tracker.Finalize(ctx, false))

	sess, err := st.GetSession(ctx, tracker.SessionID())
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusFailed, sess.Status)
	require.NotNil(t, sess.CompletedAt)
}

func TestTracker_Finalize_SecondCallErrors(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tracker, err := StartSession(ctx, st)
	require.NoError(t, err)

	require.NoError(t, tracker.Finalize(ctx, true))

	err = tracker.Finalize(ctx, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already finalized")
}
