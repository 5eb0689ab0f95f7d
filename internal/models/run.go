package models

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Active reports whether the run is still being worked on by the engine.
// Anything else (COMPLETED, FAILED, or a status this client doesn't know
// about) means there is nothing left to poll for.
func (s RunStatus) Active() bool {
	return s == RunStatusPending || s == RunStatusRunning
}

// AgentRun is a read-only snapshot of one background coding-agent execution,
// as served by the run backend. Only the backend ever mutates a run; this
// client refetches whole snapshots and never writes.
type AgentRun struct {
	ID          string    `json:"id"`
	IssueID     string    `json:"issue_id"`
	Repository  string    `json:"repository"`
	IssueNumber int       `json:"issue_number"`
	Status      RunStatus `json:"status"`

	Iteration     int `json:"iteration"`
	TokensUsed    int `json:"tokens_used"`
	ToolCallsMade int `json:"tool_calls_made"`

	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	ElapsedSeconds *int       `json:"elapsed_seconds"`

	BranchName   string   `json:"branch_name"`
	PRNumber     *int     `json:"pr_number"`
	PRURL        string   `json:"pr_url"`
	FilesChanged []string `json:"files_changed"`
	Error        string   `json:"error"`

	IssueTitle   string `json:"issue_title_snapshot"`
	IssueBody    string `json:"issue_body_snapshot"`
	IssueURL     string `json:"issue_url"`
	FinalSummary string `json:"final_summary"`

	// Conversation is the raw transcript, append-only. Entries are kept
	// opaque here; internal/timeline turns them into display entries.
	Conversation []json.RawMessage `json:"conversation"`
}
