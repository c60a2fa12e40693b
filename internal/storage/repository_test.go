package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	created, err := repo.CreateRun(ctx, Run{ID: "r1", AccountID: 3, From: from, Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, RunPending, created.Status)

	ok, err := repo.MarkRunning(ctx, "r1", time.Time{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkRunning(ctx, "r1", time.Time{})
	require.NoError(t, err)
	assert.False(t, ok, "a running run is not claimed twice")

	require.NoError(t, repo.FinishRun(ctx, "r1", Outcome{
		Status: RunSucceeded, Records: 4437, Pages: 3, SinkRef: "exports/transacoes-r1.csv",
	}))

	run, err := repo.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, run.Status)
	assert.Equal(t, int64(3), run.AccountID)
	assert.Equal(t, 4437, run.Records)
	assert.Equal(t, 3, run.Pages)
	assert.Equal(t, "exports/transacoes-r1.csv", run.SinkRef)
	assert.True(t, run.From.Equal(from))
	assert.True(t, run.To.IsZero())
	assert.False(t, run.FinishedAt.IsZero())
}

func TestFinishRunRejectsNonTerminal(t *testing.T) {
	repo := newRepo(t)
	err := repo.FinishRun(context.Background(), "x", Outcome{Status: RunRunning})
	assert.Error(t, err)
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = repo.MarkRunning(ctx, "missing", time.Time{})
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = repo.FinishRun(ctx, "missing", Outcome{Status: RunFailed})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.CreateRun(ctx, Run{ID: id, AccountID: 1, Format: "csv"})
		require.NoError(t, err)
		clock = clock.Add(time.Minute)
	}
	require.NoError(t, repo.FinishRun(ctx, "b", Outcome{Status: RunIncomplete, Records: 20, Error: "page bound"}))

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, RunIncomplete, runs[1].Status)
	assert.Equal(t, "page bound", runs[1].Error)

	pending, err := repo.ListStaleRuns(ctx, time.Date(2024, 5, 1, 10, 1, 30, 0, time.UTC), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "b is finished and c is too recent")
	assert.Equal(t, "a", pending[0].ID)
}

func TestExpiredClaimIsTakenOver(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	_, err := repo.CreateRun(ctx, Run{ID: "r", AccountID: 1, Format: "csv"})
	require.NoError(t, err)
	ok, err := repo.MarkRunning(ctx, "r", time.Time{})
	require.NoError(t, err)
	require.True(t, ok)

	// The worker holding the claim dies here
	clock = clock.Add(5 * time.Minute)
	stale, err := repo.ListStaleRuns(ctx, clock.Add(-10*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, stale, "claim still within its lease")
	ok, err = repo.MarkRunning(ctx, "r", clock.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	clock = clock.Add(time.Hour)
	stale, err = repo.ListStaleRuns(ctx, clock.Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, RunRunning, stale[0].Status)

	ok, err = repo.MarkRunning(ctx, "r", clock.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok, "expired claim is taken over")

	run, err := repo.GetRun(ctx, "r")
	require.NoError(t, err)
	assert.True(t, run.UpdatedAt.Equal(clock), "new claim starts a new lease")

	require.NoError(t, repo.FinishRun(ctx, "r", Outcome{Status: RunSucceeded}))
	ok, err = repo.MarkRunning(ctx, "r", clock.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "finished runs are never claimed")
}

func TestReleaseRun(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.CreateRun(ctx, Run{ID: "r", AccountID: 1, Format: "csv"})
	require.NoError(t, err)
	assert.Error(t, repo.ReleaseRun(ctx, "r"), "only running runs are released")

	ok, err := repo.MarkRunning(ctx, "r", time.Time{})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, repo.ReleaseRun(ctx, "r"))

	run, err := repo.GetRun(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, RunPending, run.Status)

	ok, err = repo.MarkRunning(ctx, "r", time.Time{})
	require.NoError(t, err)
	assert.True(t, ok, "a released run is claimed again")

	assert.ErrorIs(t, repo.ReleaseRun(ctx, "missing"), ErrRunNotFound)
}

func TestReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	repo, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	_, err = repo.CreateRun(ctx, Run{ID: "keep", AccountID: 1, Format: "blob"})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	defer repo.Close()
	run, err := repo.GetRun(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "blob", run.Format)
}
