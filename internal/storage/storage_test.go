package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theeshop/listingbot/internal/types"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewStorage(path)
	require.NoError(t, err)
	defer s.Close()

	applied, err := s.appliedMigrations()
	require.NoError(t, err)
	assert.Len(t, applied, len(allMigrations))
}

func TestTouchAccountKeepsCreatedAt(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.TouchAccount(ctx, types.Account{Key: "shop1", ProfileDir: "profiles/etsy_shop1", CreatedAt: created}))
	later := created.Add(2 * time.Hour)
	require.NoError(t, s.TouchAccount(ctx, types.Account{Key: "shop1", ProfileDir: "profiles/etsy_shop1", CreatedAt: later, LastUsedAt: later}))

	a, err := s.Account(ctx, "shop1")
	require.NoError(t, err)
	assert.True(t, a.CreatedAt.Equal(created))
	assert.True(t, a.LastUsedAt.Equal(later))
	assert.Equal(t, "profiles/etsy_shop1", a.ProfileDir)
}

func TestListAccountsSorted(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	for _, k := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, s.TouchAccount(ctx, types.Account{Key: k, ProfileDir: "p/" + k}))
	}
	accounts, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "alpha", accounts[0].Key)
	assert.Equal(t, "mid", accounts[1].Key)
	assert.Equal(t, "zeta", accounts[2].Key)
}

func TestAccountNotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.Account(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRunRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	r := types.RunRecord{
		RunID:      "run-1",
		AccountKey: "shop1",
		Category:   "Wall Art",
		Title:      "Sunset print",
		Status:     types.RunStatusRunning,
		StartedAt:  start,
	}
	require.NoError(t, s.SaveRun(ctx, r))

	got, err := s.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusRunning, got.Status)
	assert.True(t, got.FinishedAt.IsZero())
	assert.Empty(t, got.States)

	r.Status = types.RunStatusAborted
	r.FailedStep = "TitleFill"
	r.Artifact = "screenshots/shop1_title_error.png"
	r.Error = "step TitleFill failed"
	r.States = []string{"CategorySearch", "SelectFirstSuggestion"}
	r.FinishedAt = start.Add(time.Minute)
	require.NoError(t, s.SaveRun(ctx, r))

	got, err = s.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusAborted, got.Status)
	assert.Equal(t, "TitleFill", got.FailedStep)
	assert.Equal(t, r.Artifact, got.Artifact)
	assert.Equal(t, r.States, got.States)
	assert.True(t, got.FinishedAt.Equal(r.FinishedAt))
}

func TestRunNotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	runs := []types.RunRecord{
		{RunID: "a1", AccountKey: "a", Category: "c", Status: types.RunStatusDone, StartedAt: start},
		{RunID: "a2", AccountKey: "a", Category: "c", Status: types.RunStatusDone, StartedAt: start.Add(time.Hour)},
		{RunID: "b1", AccountKey: "b", Category: "c", Status: types.RunStatusDone, StartedAt: start.Add(2 * time.Hour)},
	}
	for _, r := range runs {
		require.NoError(t, s.SaveRun(ctx, r))
	}

	all, err := s.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b1", all[0].RunID)

	onlyA, err := s.ListRuns(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, "a2", onlyA[0].RunID)

	limited, err := s.ListRuns(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
