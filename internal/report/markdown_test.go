package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidarity-tools/harvest-cli/internal/model"
)

func testSession() *model.HarvestSession {
	started := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	completed := started.Add(42 * time.Second)
	return &model.HarvestSession{
		ID:          "3f6a1c2e-8d4b-4f1a-9c7e-5b2d8e0f4a61",
		Status:      model.SessionStatusCompleted,
		StartedAt:   started,
		CompletedAt: &completed,
		TotalFound:  120,
		Successful:  118,
		Failed:      2,
		Errors: []model.SessionError{
			{Opid: "70001", Reason: "permanent: status 404", OccurredAt: started.Add(10 * time.Second)},
			{Opid: "70002", Reason: "extract: missing title", OccurredAt: started.Add(20 * time.Second)},
		},
	}
}

func TestWriteSession_Summary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteSession(&buf, testSession()))

	out := buf.String()
	assert.Contains(t, out, "# Harvest Session Report")
	assert.Contains(t, out, "## Summary")
	assert.Contains(t, out, "`3f6a1c2e-8d4b-4f1a-9c7e-5b2d8e0f4a61`")
	assert.Contains(t, out, "✅ Completed")
	assert.Contains(t, out, "42s")
	assert.Contains(t, out, "120")
	assert.Contains(t, out, "118")
	assert.Contains(t, out, "2026-03-15 09:00:00 UTC")
}

func TestWriteSession_ErrorTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteSession(&buf, testSession()))

	out := buf.String()
	assert.Contains(t, out, "## Failed Items")
	assert.Contains(t, out, "[!IMPORTANT]")
	assert.Contains(t, out, "`70001`")
	assert.Contains(t, out, "permanent: status 404")
	assert.Contains(t, out, "`70002`")
	assert.Contains(t, out, "extract: missing title")
}

func TestWriteSession_CleanRunSkipsErrorTable(t *testing.T) {
	t.Parallel()

	sess := testSession()
	sess.Failed = 0
	sess.Successful = sess.TotalFound
	sess.Errors = nil

	var buf bytes.Buffer
	require.NoError(t, WriteSession(&buf, sess))

	out := buf.String()
	assert.NotContains(t, out, "## Failed Items")
	assert.Contains(t, out, "[!TIP]")
	assert.Contains(t, out, "harvested successfully")
}

func TestWriteSession_FailedRun(t *testing.T) {
	t.Parallel()

	sess := testSession()
	sess.Status = model.SessionStatusFailed

	var buf bytes.Buffer
	require.NoError(t, WriteSession(&buf, sess))

	out := buf.String()
	assert.Contains(t, out, "❌ Failed")
	assert.Contains(t, out, "[!WARNING]")
	assert.Contains(t, out, "Run aborted before completion")
}

func TestWriteSession_RunningSessionHasNoCompletedAt(t *testing.T) {
	t.Parallel()

	sess := testSession()
	sess.Status = model.SessionStatusRunning
	sess.CompletedAt = nil

	var buf bytes.Buffer
	require.NoError(t, WriteSession(&buf, sess))

	assert.Contains(t, buf.String(), "⏳ running")
}

func TestWriteSession_TruncatesLongReasons(t *testing.T) {
	t.Parallel()

	sess := testSession()
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	sess.Errors = []model.SessionError{
		{Opid: "70003", Reason: string(long), OccurredAt: sess.StartedAt},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSession(&buf, sess))

	assert.Contains(t, buf.String(), string(long[:77])+"...")
	assert.NotContains(t, buf.String(), string(long))
}

func TestWriteSessionFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.md")
	require.NoError(t, WriteSessionFile(path, testSession()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Harvest Session Report")
}
