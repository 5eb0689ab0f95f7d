// Package render decides how a tool payload should be presented. It is pure:
// given a tool name and a value it produces a display plan (segments plus an
// optional error panel and metadata panel) and never panics, whatever shape
// the payload arrives in.
package render

import (
	"encoding/json"
	"fmt"

	"github.com/runwatch/runwatch/internal/format"
)

// Parsed is the outcome of a defensive JSON parse: either a decoded value or
// an explicit fallback to the raw string. The fallback is a normal branch,
// not an error.
type Parsed struct {
	Value any
	Raw   string
	OK    bool
}

// ParseLoose decodes s as JSON if possible, otherwise falls back to the raw
// string.
func ParseLoose(s string) Parsed {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return Parsed{Raw: s}
	}
	return Parsed{Value: v, OK: true}
}

// Status mirrors the success flag of a tool-result envelope.
type Status string

const (
	StatusNone    Status = ""
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

type SegmentKind int

const (
	// SegmentCode is a fenced code block; Text is already fence-escaped.
	SegmentCode SegmentKind = iota
	// SegmentPath labels a file path above a code block.
	SegmentPath
	// SegmentExitCode surfaces a command's numeric exit code.
	SegmentExitCode
)

// Segment is one visual unit of a rendered payload.
type Segment struct {
	Kind     SegmentKind
	Language string
	Text     string
}

// Rendering is the full display plan for one payload. Error is shown
// verbatim in a dedicated panel regardless of the segments chosen; Metadata
// (pretty JSON, empty when absent) goes into a collapsible panel.
type Rendering struct {
	Segments []Segment
	Status   Status
	Error    string
	Metadata string
}

// Empty reports whether there is nothing at all to show.
func (r Rendering) Empty() bool {
	return len(r.Segments) == 0 && r.Error == "" && r.Metadata == ""
}

// Tool classification. The table is keyed by the function names the agent
// backend registers; anything absent renders through the generic JSON path.
type toolClass int

const (
	classGeneric toolClass = iota
	classFileRead
	classRunCommand
	classRunCode
)

var toolClasses = map[string]toolClass{
	"read_file":   classFileRead,
	"run_command": classRunCommand,
	"run_tests":   classRunCommand,
	"run_linter":  classRunCommand,
	"run_code":    classRunCode,
}

// ToolResult interprets the content of a tool-result entry. Content is
// usually a JSON-encoded {success, data, error, metadata} envelope, but any
// other shape degrades gracefully through the value policy.
func ToolResult(toolName string, content string) Rendering {
	p := ParseLoose(content)
	if !p.OK {
		return Rendering{Segments: Value(toolName, p.Raw)}
	}

	obj, ok := p.Value.(map[string]any)
	if !ok || !isEnvelope(obj) {
		return Rendering{Segments: Value(toolName, p.Value)}
	}

	r := Rendering{Segments: Value(toolName, obj["data"])}

	if success, ok := obj["success"].(bool); ok {
		if success {
			r.Status = StatusSuccess
		} else {
			r.Status = StatusFailed
		}
	}
	if errText, ok := obj["error"].(string); ok && errText != "" {
		r.Error = errText
	} else if errVal, ok := obj["error"]; ok && errVal != nil {
		r.Error = format.PrettyJSON(errVal)
	}
	if meta, ok := obj["metadata"].(map[string]any); ok && len(meta) > 0 {
		r.Metadata = format.PrettyJSON(meta)
	}

	return r
}

// ToolCallArgs interprets the raw argument string of a tool call: valid JSON
// pretty-prints, anything else shows as-is.
func ToolCallArgs(arguments string) Rendering {
	if arguments == "" {
		return Rendering{}
	}
	p := ParseLoose(arguments)
	if !p.OK {
		return Rendering{Segments: []Segment{codeSegment("text", p.Raw)}}
	}
	return Rendering{Segments: []Segment{codeSegment("json", format.PrettyJSON(p.Value))}}
}

// isEnvelope recognizes the backend's tool-result wrapper.
func isEnvelope(obj map[string]any) bool {
	if _, ok := obj["success"]; ok {
		return true
	}
	_, hasData := obj["data"]
	_, hasErr := obj["error"]
	return hasData || hasErr
}

// Value applies the priority-ordered presentation policy to a payload value:
//
//  1. non-object values render as a plain text block (or nothing when empty);
//  2. file-read payloads show the path, then the file in its own language;
//  3. command payloads prefer stdout, then result, then "(no output)", as
//     bash, with the exit code surfaced separately;
//  4. run-code payloads show a string result verbatim;
//  5. everything else pretty-prints as JSON.
func Value(toolName string, v any) []Segment {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return []Segment{codeSegment("text", val)}
	case map[string]any:
		return objectSegments(toolName, val)
	default:
		return []Segment{jsonSegment(v)}
	}
}

func objectSegments(toolName string, obj map[string]any) []Segment {
	switch toolClasses[toolName] {
	case classFileRead:
		if content, ok := obj["content"].(string); ok {
			var segs []Segment
			path, _ := obj["path"].(string)
			if path != "" {
				segs = append(segs, Segment{Kind: SegmentPath, Text: path})
			}
			segs = append(segs, codeSegment(format.LanguageFromPath(path), content))
			return segs
		}
	case classRunCommand:
		out, ok := obj["stdout"].(string)
		if !ok || out == "" {
			out, ok = obj["result"].(string)
		}
		if !ok || out == "" {
			out = "(no output)"
		}
		segs := []Segment{codeSegment("bash", out)}
		if code, ok := numeric(obj["exit_code"]); ok {
			segs = append(segs, Segment{Kind: SegmentExitCode, Text: fmt.Sprintf("%d", code)})
		}
		return segs
	case classRunCode:
		if result, ok := obj["result"]; ok {
			if s, isStr := result.(string); isStr {
				return []Segment{codeSegment("text", s)}
			}
			return []Segment{codeSegment("text", format.PrettyJSON(result))}
		}
	}
	return []Segment{jsonSegment(obj)}
}

func codeSegment(language, text string) Segment {
	return Segment{Kind: SegmentCode, Language: language, Text: format.EscapeFences(text)}
}

func jsonSegment(v any) Segment {
	return codeSegment("json", format.PrettyJSON(v))
}

// numeric coerces JSON numbers, which decode as float64, to int.
func numeric(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
