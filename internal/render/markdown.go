package render

import (
	"fmt"
	"strings"
)

// Markdown flattens a rendering into markdown-style text for plain CLI
// output. Segment text is already fence-escaped, so emitting real fences
// here is safe.
func (r Rendering) Markdown() string {
	var b strings.Builder

	for _, seg := range r.Segments {
		switch seg.Kind {
		case SegmentPath:
			fmt.Fprintf(&b, "%s\n", seg.Text)
		case SegmentExitCode:
			fmt.Fprintf(&b, "exit code: %s\n", seg.Text)
		case SegmentCode:
			fmt.Fprintf(&b, "```%s\n%s\n```\n", seg.Language, seg.Text)
		}
	}

	if r.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", r.Error)
	}
	if r.Metadata != "" {
		fmt.Fprintf(&b, "metadata:\n%s\n", r.Metadata)
	}

	return b.String()
}
