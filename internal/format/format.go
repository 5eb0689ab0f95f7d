// Package format holds the pure display formatters shared by the TUI and the
// plain CLI output: relative and absolute timestamps, durations, language
// detection for fenced code blocks, and safe JSON pretty-printing.
package format

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Relative renders how long ago t was, measured against now.
func Relative(t time.Time, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// RelativeTime is Relative against the wall clock at call time.
func RelativeTime(t time.Time) string {
	return Relative(t, time.Now())
}

// Duration renders a second count as "Ns" or "Xm Ys". Unknown or
// non-positive values come back as "N/A".
func Duration(seconds *int) string {
	if seconds == nil || *seconds <= 0 {
		return "N/A"
	}
	s := *seconds
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm %ds", s/60, s%60)
}

// Absolute renders a timestamp with full date and time components.
func Absolute(t time.Time) string {
	return t.Format("Jan 2, 2006 15:04:05")
}

var languagesByExt = map[string]string{
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".py":   "python",
	".json": "json",
	".md":   "markdown",
	".css":  "css",
	".yml":  "yaml",
	".yaml": "yaml",
}

// LanguageFromPath maps a file path to a fenced-block language tag. Unknown
// extensions and empty paths are plain "text".
func LanguageFromPath(path string) string {
	if path == "" {
		return "text"
	}
	if lang, ok := languagesByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "text"
}

// PrettyJSON renders any value as two-space indented JSON. It never fails:
// values json.Marshal rejects degrade to their fmt representation.
func PrettyJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

// EscapeFences makes s safe to embed inside a fenced code block by rewriting
// literal ``` sequences. The transform is exactly reversible via
// UnescapeFences: "~" doubles to "~~" first, then "```" becomes "~^". The
// replacement token contains no backtick, so leftover backticks adjacent to a
// rewritten fence can never recombine into a new one.
func EscapeFences(s string) string {
	s = strings.ReplaceAll(s, "~", "~~")
	return strings.ReplaceAll(s, "```", "~^")
}

// UnescapeFences reverses EscapeFences.
func UnescapeFences(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '~' && i+1 < len(s) {
			switch s[i+1] {
			case '~':
				b.WriteByte('~')
				i++
				continue
			case '^':
				b.WriteString("```")
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
