package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelative(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"seconds", 30 * time.Second, "just now"},
		{"minutes", 5 * time.Minute, "5m ago"},
		{"hours", 3 * time.Hour, "3h ago"},
		{"days", 49 * time.Hour, "2d ago"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Relative(now.Add(-tc.ago), now))
		})
	}
}

func TestDuration(t *testing.T) {
	secs := func(n int) *int { return &n }

	assert.Equal(t, "N/A", Duration(nil))
	assert.Equal(t, "N/A", Duration(secs(0)))
	assert.Equal(t, "N/A", Duration(secs(-4)))
	assert.Equal(t, "45s", Duration(secs(45)))
	assert.Equal(t, "2m 5s", Duration(secs(125)))
	assert.Equal(t, "1m 0s", Duration(secs(60)))
}

func TestAbsolute(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 5, 0, time.UTC)
	assert.Equal(t, "Jun 1, 2025 12:30:05", Absolute(ts))
}

func TestLanguageFromPath(t *testing.T) {
	cases := map[string]string{
		"src/app.py":          "python",
		"web/index.tsx":       "typescript",
		"web/app.ts":          "typescript",
		"lib/util.js":         "javascript",
		"lib/View.jsx":        "javascript",
		"package.json":        "json",
		"README.md":           "markdown",
		"styles/main.css":     "css",
		"deploy/service.yml":  "yaml",
		"deploy/service.yaml": "yaml",
		"Makefile":            "text",
		"":                    "text",
	}
	for path, want := range cases {
		assert.Equal(t, want, LanguageFromPath(path), "path %q", path)
	}
}

func TestPrettyJSONNeverFails(t *testing.T) {
	out := PrettyJSON(map[string]any{"a": 1})
	assert.Equal(t, "{\n  \"a\": 1\n}", out)

	// Channels can't be marshalled; output degrades but stays non-empty.
	out = PrettyJSON(make(chan int))
	assert.NotEmpty(t, out)

	// Idempotent for identical input.
	v := map[string]any{"b": []any{"x", 2.0}, "a": nil}
	assert.Equal(t, PrettyJSON(v), PrettyJSON(v))
}

func TestFenceEscapeRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain text",
		"```",
		"before ``` after",
		"``````",
		"````",
		"`````",
		"~",
		"~~",
		"~`",
		"~^",
		"literal ~^ marker",
		"~```~",
		"a~b```c~~d``e",
		"ends with tilde ~",
	}
	for _, s := range cases {
		escaped := EscapeFences(s)
		assert.NotContains(t, escaped, "```", "input %q", s)
		assert.Equal(t, s, UnescapeFences(escaped), "input %q", s)
	}
}
