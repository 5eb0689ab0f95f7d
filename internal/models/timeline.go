package models

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleUnknown   Role = "unknown"
)

// ToolCall is one function invocation requested by the assistant. Arguments
// is kept as the raw wire string; it is parsed defensively at render time and
// falls back to the raw text when it isn't valid JSON.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// TimelineEntry is one normalized turn of a run's transcript. Content is
// always a printable string after normalization; entries that could not be
// interpreted carry RoleUnknown and a best-effort string form.
type TimelineEntry struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// IsToolResult reports whether the entry answers an earlier tool call.
func (e TimelineEntry) IsToolResult() bool {
	return e.Role == RoleTool && e.ToolCallID != ""
}
