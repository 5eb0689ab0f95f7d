package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runwatch/runwatch/internal/poller"
)

const runID = "3f6c8a4e-1f2b-4f6e-9a6d-2b7c1d9e0f11"

func TestGetRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/agents/"+runID, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "` + runID + `",
			"repository": "acme/widgets",
			"issue_number": 7,
			"status": "RUNNING",
			"iteration": 3,
			"tokens_used": 1200,
			"tool_calls_made": 5,
			"conversation": [{"role":"user","content":"go"}]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	run, err := c.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, "acme/widgets", run.Repository)
	assert.True(t, run.Status.Active())
	assert.Len(t, run.Conversation, 1)
}

func TestGetRunNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Agent run not found."}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.GetRun(context.Background(), runID)
	assert.True(t, errors.Is(err, poller.ErrNotFound))
}

func TestGetRunRejectsBadID(t *testing.T) {
	c := New("http://unused", "")
	_, err := c.GetRun(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
}

func TestGetRunServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.GetRun(context.Background(), runID)
	require.Error(t, err)
	assert.False(t, errors.Is(err, poller.ErrNotFound))
	assert.Contains(t, err.Error(), "500")
}

func TestListRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/agents", r.URL.Path)
		assert.Equal(t, "acme/widgets", r.URL.Query().Get("repository"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"` + runID + `","status":"COMPLETED"},{"id":"` + runID + `","status":"PENDING"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	runs, err := c.ListRuns(context.Background(), "acme/widgets")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.False(t, runs[0].Status.Active())
	assert.True(t, runs[1].Status.Active())
}
