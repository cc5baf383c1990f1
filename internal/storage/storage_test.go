package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/hawcbmd/internal/models"
)

func newTestStorage(t *testing.T, maxRuns int) *Storage {
	t.Helper()
	s, err := New(maxRuns, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(endpointID int, at time.Time) *models.Run {
	out := models.EmptyOutput()
	out.BMD = 12
	out.BMDL = 8
	m := models.Model{ID: 5, Name: "Hill", Output: out}
	m.Recommendation.Reset()
	m.Recommendation.Recommended = true
	m.Recommendation.RecommendedVariable = "AIC"
	m.Recommendation.LogicNotes[models.BinWarning] = []string{"Warning: x"}

	return &models.Run{
		EndpointID: endpointID,
		SessionURL: "/bmd/api/session/1/",
		DataType:   models.DataTypeContinuous,
		RuleSource: models.RuleSourceDefaults,
		Models:     []models.Model{m},
		CreatedAt:  at,
	}
}

func TestStorage_SaveAndGetRun(t *testing.T) {
	s := newTestStorage(t, 10)
	ctx := context.Background()

	run := testRun(7, time.Time{})
	require.NoError(t, s.SaveRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.EndpointID)
	assert.Equal(t, models.RuleSourceDefaults, got.RuleSource)
	require.Len(t, got.Models, 1)
	assert.Equal(t, 12.0, got.Models[0].Output.BMD.Float())
	assert.False(t, got.Models[0].Output.AIC.Valid(), "NaN survives as invalid")
	assert.Equal(t, []string{"Warning: x"}, got.Models[0].Recommendation.LogicNotes[models.BinWarning])
	assert.Equal(t, []int{5}, got.RecommendedIDs())
}

func TestStorage_GetRunNotFound(t *testing.T) {
	s := newTestStorage(t, 10)
	_, err := s.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestStorage_SaveRunValidates(t *testing.T) {
	s := newTestStorage(t, 10)
	run := testRun(0, time.Time{})
	assert.Error(t, s.SaveRun(context.Background(), run))
}

func TestStorage_ListAndLatest(t *testing.T) {
	s := newTestStorage(t, 10)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, ep := range []int{1, 2, 1} {
		require.NoError(t, s.SaveRun(ctx, testRun(ep, base.Add(time.Duration(i)*time.Hour))))
	}

	all, err := s.ListRuns(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))

	ep1, err := s.ListRuns(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, ep1, 2)

	latest, err := s.LatestRun(ctx, 1)
	require.NoError(t, err)
	assert.True(t, latest.CreatedAt.Equal(base.Add(2*time.Hour)))

	_, err = s.LatestRun(ctx, 99)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestStorage_RotateRuns(t *testing.T) {
	s := newTestStorage(t, 2)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 4; i++ {
		run := testRun(1, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.SaveRun(ctx, run))
		ids = append(ids, run.ID)
	}

	removed, err := s.RotateRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	runs, err := s.ListRuns(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[3], runs[0].ID)
	assert.Equal(t, ids[2], runs[1].ID)
}

func TestStorage_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	s, err := New(5, path)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(context.Background(), testRun(3, time.Time{})))
	require.NoError(t, s.Close())

	reopened, err := New(5, path)
	require.NoError(t, err)
	defer reopened.Close()
	runs, err := reopened.ListRuns(context.Background(), 3, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, path, reopened.Path())
}
