// Package timeline reconstructs an ordered, display-ready timeline from the
// raw conversation attached to an agent run. Raw entries arrive in whatever
// shape the run engine recorded them in; normalization guarantees a stable
// internal form without ever dropping or reordering entries.
package timeline

import (
	"encoding/json"
	"strings"

	"github.com/runwatch/runwatch/internal/format"
	"github.com/runwatch/runwatch/internal/models"
)

// Wire shapes as the backend records them (OpenAI function-calling format).
// Content and arguments are RawMessage because their types vary: content may
// be a string, null, or any structured value; arguments should be a JSON
// string but is not trusted to be one.
type rawToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type rawEntry struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	ToolCalls  []rawToolCall   `json:"tool_calls"`
	ToolCallID string          `json:"tool_call_id"`
}

// Normalize converts raw transcript entries into timeline entries. The output
// always has the same length and order as the input: entries that cannot be
// interpreted degrade to RoleUnknown with a best-effort string form. System
// entries are kept here so correlation indexes stay stable; DisplayEntries
// filters them afterwards.
func Normalize(raw []json.RawMessage) []models.TimelineEntry {
	entries := make([]models.TimelineEntry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, normalizeOne(r))
	}
	return entries
}

func normalizeOne(raw json.RawMessage) models.TimelineEntry {
	var re rawEntry
	if err := json.Unmarshal(raw, &re); err != nil {
		return models.TimelineEntry{
			Role:    models.RoleUnknown,
			Content: rawString(raw),
		}
	}

	entry := models.TimelineEntry{
		Role:       parseRole(re.Role),
		Content:    contentString(re.Content),
		ToolCallID: re.ToolCallID,
	}

	for _, tc := range re.ToolCalls {
		entry.ToolCalls = append(entry.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: rawString(tc.Function.Arguments),
		})
	}

	return entry
}

func parseRole(role string) models.Role {
	switch r := models.Role(role); r {
	case models.RoleSystem, models.RoleUser, models.RoleAssistant, models.RoleTool:
		return r
	default:
		return models.RoleUnknown
	}
}

// contentString flattens arbitrary content into a printable string: JSON
// strings unwrap, null and absent become empty, and anything structured is
// pretty-printed.
func contentString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return strings.TrimSpace(string(raw))
	}
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return format.PrettyJSON(val)
	}
}

// rawString unwraps a JSON string value, or falls back to the raw text.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// DisplayEntries filters out entries the operator view does not show.
// Filtering runs strictly after Normalize so correlation has seen every
// entry first.
func DisplayEntries(entries []models.TimelineEntry) []models.TimelineEntry {
	out := make([]models.TimelineEntry, 0, len(entries))
	for _, e := range entries {
		if e.Role == models.RoleSystem {
			continue
		}
		out = append(out, e)
	}
	return out
}
