package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runwatch/runwatch/internal/models"
	"github.com/runwatch/runwatch/internal/poller"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "runwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	run := &models.AgentRun{
		ID:         "11111111-2222-3333-4444-555555555555",
		Repository: "acme/widgets",
		Status:     models.RunStatusRunning,
		CreatedAt:  created,
		Conversation: []json.RawMessage{
			json.RawMessage(`{"role":"user","content":"fix it"}`),
		},
	}
	require.NoError(t, s.SaveRun(run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Repository, got.Repository)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Len(t, got.Conversation, 1)

	// Re-recording replaces the snapshot.
	run.Status = models.RunStatusCompleted
	require.NoError(t, s.SaveRun(run))
	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, poller.ErrNotFound))
}

func TestListRunsFiltersByRepository(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(&models.AgentRun{ID: "a", Repository: "acme/widgets", Status: models.RunStatusCompleted}))
	require.NoError(t, s.SaveRun(&models.AgentRun{ID: "b", Repository: "acme/gadgets", Status: models.RunStatusFailed}))

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	widgets, err := s.ListRuns(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Len(t, widgets, 1)
	assert.Equal(t, "a", widgets[0].ID)
}
