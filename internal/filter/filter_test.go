package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runwatch/runwatch/internal/models"
)

func TestMatchByRole(t *testing.T) {
	f, err := New(`entry.role == "tool"`)
	require.NoError(t, err)
	defer f.Close()

	ok, err := f.Match(models.TimelineEntry{Role: models.RoleTool, ToolCallID: "c1"}, "run_command")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Match(models.TimelineEntry{Role: models.RoleUser, Content: "hi"}, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchByToolAndContent(t *testing.T) {
	f, err := New(`entry.tool == "read_file" and string.find(entry.content, "success")`)
	require.NoError(t, err)
	defer f.Close()

	ok, err := f.Match(models.TimelineEntry{
		Role:       models.RoleTool,
		ToolCallID: "c1",
		Content:    `{"success":true}`,
	}, "read_file")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchHasToolCalls(t *testing.T) {
	f, err := New(`entry.has_tool_calls`)
	require.NoError(t, err)
	defer f.Close()

	ok, err := f.Match(models.TimelineEntry{
		Role:      models.RoleAssistant,
		ToolCalls: []models.ToolCall{{ID: "c1", Name: "run_code"}},
	}, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInvalidExpression(t *testing.T) {
	_, err := New(`this is not lua ===`)
	assert.Error(t, err)
}

func TestSandboxHasNoOS(t *testing.T) {
	f, err := New(`os ~= nil and os.execute ~= nil`)
	require.NoError(t, err)
	defer f.Close()

	ok, err := f.Match(models.TimelineEntry{Role: models.RoleUser}, "")
	require.NoError(t, err)
	assert.False(t, ok, "os library must not be exposed to filters")
}
