// Package sanitize post-processes raw model output before it is shown or stored.
//
// Reasoning models wrap their deliberation in <think>...</think>. Those
// segments are removed from the visible reply and handed back separately so
// they can be logged. The remaining text gets a rendering hint: rich when it
// looks like markdown, plain otherwise. Nothing in this package has side
// effects.
package sanitize

import (
	"regexp"
	"strings"

	"LocalChat/internal/session"
)

const (
	OpenMarker  = "<think>"
	CloseMarker = "</think>"
)

var reasoningRe = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(OpenMarker) + `(.*?)` + regexp.QuoteMeta(CloseMarker))

// ExtractReasoning removes every <think>...</think> segment from raw. The
// segments' inner text is returned in order of appearance. With no complete
// marker pair, visible is raw and reasoning is empty.
func ExtractReasoning(raw string) (visible string, reasoning []string) {
	parts, segments := split(raw)
	return strings.Join(parts, ""), segments
}

// split cuts raw around each reasoning segment. len(parts) is always
// len(segments)+1 and parts[i] precedes segments[i].
func split(raw string) (parts, segments []string) {
	matches := reasoningRe.FindAllStringSubmatchIndex(raw, -1)
	segments = []string{}
	if len(matches) == 0 {
		return []string{raw}, segments
	}

	parts = make([]string, 0, len(matches)+1)
	prev := 0
	for _, m := range matches {
		parts = append(parts, raw[prev:m[0]])
		segments = append(segments, raw[m[2]:m[3]])
		prev = m[1]
	}
	parts = append(parts, raw[prev:])
	return parts, segments
}

// markdown structures that make a reply worth rendering
var richPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^ {0,3}#{1,6}[ \t]+\S`),                            // heading
	regexp.MustCompile(`\*\*[^*\n]+\*\*|__[^_\n]+__`),                          // strong
	regexp.MustCompile(`(?:^|[^\w*])\*[^*\s](?:[^*\n]*[^*\s])?\*(?:$|[^\w*])`), // emphasis
	regexp.MustCompile(`(?:^|[^\w_])_[^_\s](?:[^_\n]*[^_\s])?_(?:$|[^\w_])`),   // emphasis
	regexp.MustCompile("(?m)^ {0,3}(?:```|~~~)"),                               // fenced code
	regexp.MustCompile("`[^`\n]+`"),                                            // inline code
	regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d{1,9}[.)])[ \t]+\S`),             // list item
	regexp.MustCompile(`!\[[^\]\n]*\]\([^)\s]+[^)]*\)`),                        // image
	regexp.MustCompile(`\[[^\]\n]+\]\([^)\s]+[^)]*\)`),                         // link
}

// ClassifyFormat returns FormatRich when text contains markdown structure
// (headings, emphasis, code, lists, links or images) and FormatPlain otherwise.
func ClassifyFormat(text string) session.Format {
	for _, re := range richPatterns {
		if re.MatchString(text) {
			return session.FormatRich
		}
	}
	return session.FormatPlain
}
