package timeline

import "github.com/runwatch/runwatch/internal/models"

// UnknownTool is the label for tool results whose tool_call_id matches no
// recorded call. An unresolved correlation is an expected condition, not an
// error.
const UnknownTool = "unknown_tool"

// Correlator maps tool_call_id to the function name the assistant requested.
// Transcripts are append-only, so Consume only walks entries it has not seen
// yet; a snapshot shorter than what was already consumed forces a full
// rebuild.
type Correlator struct {
	names    map[string]string
	consumed int
}

func NewCorrelator() *Correlator {
	return &Correlator{names: make(map[string]string)}
}

// Consume indexes tool calls from entries, picking up where the previous call
// left off. Duplicate ids overwrite: last write wins.
func (c *Correlator) Consume(entries []models.TimelineEntry) {
	if len(entries) < c.consumed {
		c.names = make(map[string]string)
		c.consumed = 0
	}
	for _, e := range entries[c.consumed:] {
		if e.Role != models.RoleAssistant {
			continue
		}
		for _, tc := range e.ToolCalls {
			if tc.ID == "" {
				continue
			}
			c.names[tc.ID] = tc.Name
		}
	}
	c.consumed = len(entries)
}

// Resolve returns the function name for a tool_call_id, or UnknownTool.
func (c *Correlator) Resolve(id string) string {
	if name, ok := c.names[id]; ok && name != "" {
		return name
	}
	return UnknownTool
}

// CallNames builds the full id-to-name index for a transcript in one pass.
func CallNames(entries []models.TimelineEntry) map[string]string {
	c := NewCorrelator()
	c.Consume(entries)
	return c.names
}
