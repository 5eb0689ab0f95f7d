package main

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runwatch/runwatch/internal/config"
	"github.com/runwatch/runwatch/internal/models"
)

// scriptedSource serves a fixed sequence of snapshots, repeating the last one
// once exhausted.
type scriptedSource struct {
	mu     sync.Mutex
	script []*models.AgentRun
	calls  int
}

func (s *scriptedSource) GetRun(ctx context.Context, id string) (*models.AgentRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	return s.script[idx], nil
}

func (s *scriptedSource) ListRuns(ctx context.Context, repository string) ([]*models.AgentRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.script, nil
}

func TestFollowSurvivesShrunkenSnapshot(t *testing.T) {
	// A recording can be overwritten with a shorter transcript while a
	// follow session watches it; the loop must reprint, not panic.
	long := &models.AgentRun{
		ID:     "r1",
		Status: models.RunStatusRunning,
		Conversation: []json.RawMessage{
			json.RawMessage(`{"role":"user","content":"one"}`),
			json.RawMessage(`{"role":"assistant","content":"two"}`),
			json.RawMessage(`{"role":"assistant","content":"three"}`),
		},
	}
	short := &models.AgentRun{
		ID:     "r1",
		Status: models.RunStatusCompleted,
		Conversation: []json.RawMessage{
			json.RawMessage(`{"role":"user","content":"one"}`),
		},
	}

	src := &scriptedSource{script: []*models.AgentRun{long, short}}
	cfg := &config.Config{PollInterval: 5 * time.Millisecond}

	done := make(chan error, 1)
	go func() {
		done <- printTimeline(context.Background(), src, "r1", cfg, nil, true)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("follow loop never finished")
	}
}
