// Package content normalizes model response payloads.
//
// A model provider may hand back plain text, or a sequence of heterogeneous
// content fragments (maps with a declared "type", raw strings, or arbitrary
// values). The two entry points, ToText and ToParts, reduce that opaque value
// to either a display string or a closed list of typed parts. Both are pure
// functions and never return an error: malformed input degrades to empty
// output or an opaque "other" part.
package content

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Part kind identifiers. PartOther absorbs anything unrecognized.
const (
	PartText       = "text"
	PartCode       = "code"
	PartList       = "list"
	PartHeading    = "heading"
	PartBlockquote = "blockquote"
	PartError      = "error"
	PartOther      = "other"
)

// Part is one typed fragment of normalized content.
// Fields beyond Type are populated per kind: Text for textual kinds,
// Language for code, Level for headings, Items for lists, and JSON for
// the opaque "other" kind.
type Part struct {
	Type     string   `json:"type"`
	Text     string   `json:"text,omitempty"`
	Language string   `json:"language,omitempty"`
	Level    int      `json:"level,omitempty"`
	Items    []string `json:"items,omitempty"`
	JSON     string   `json:"json,omitempty"`
}

// ToText reduces a content value to plain text.
//
// Strings pass through unchanged. For fragment sequences, only "text"
// fragments contribute; everything else is skipped. Any other input shape
// yields the empty string.
func ToText(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		var sb strings.Builder
		for _, frag := range c {
			if t, ok := textFragment(frag); ok {
				sb.WriteString(t)
			}
		}
		return sb.String()
	case []Part:
		var sb strings.Builder
		for _, p := range c {
			if p.Type == PartText {
				sb.WriteString(p.Text)
			}
		}
		return sb.String()
	default:
		return ""
	}
}

// ToParts maps a content value to a closed list of typed parts.
//
// A string becomes a single text part. Each fragment of a sequence is mapped
// by its declared type; fragments with no recognizable shape become "other"
// parts carrying a best-effort JSON rendering. ToParts never panics on
// non-serializable input.
func ToParts(v any) []Part {
	switch c := v.(type) {
	case nil:
		return nil
	case string:
		return []Part{{Type: PartText, Text: c}}
	case []Part:
		// Already normalized; idempotent.
		out := make([]Part, len(c))
		copy(out, c)
		return out
	case []any:
		parts := make([]Part, 0, len(c))
		for _, frag := range c {
			parts = append(parts, fragmentToPart(frag))
		}
		return parts
	default:
		return []Part{otherPart(v)}
	}
}

// textFragment extracts text from a fragment when it is a plain string or a
// map declaring type "text".
func textFragment(frag any) (string, bool) {
	switch f := frag.(type) {
	case string:
		return f, true
	case map[string]any:
		if t, _ := f["type"].(string); t == PartText {
			s, _ := f["text"].(string)
			return s, true
		}
	case Part:
		if f.Type == PartText {
			return f.Text, true
		}
	}
	return "", false
}

func fragmentToPart(frag any) Part {
	switch f := frag.(type) {
	case string:
		return Part{Type: PartText, Text: f}
	case Part:
		return f
	case map[string]any:
		return mapToPart(f)
	default:
		return otherPart(frag)
	}
}

func mapToPart(m map[string]any) Part {
	t, _ := m["type"].(string)
	text, hasText := m["text"].(string)

	switch t {
	case PartText, PartBlockquote, PartError:
		if !hasText {
			return otherPart(m)
		}
		return Part{Type: t, Text: text}
	case PartCode:
		if !hasText {
			return otherPart(m)
		}
		lang, _ := m["language"].(string)
		return Part{Type: PartCode, Text: text, Language: lang}
	case PartHeading:
		if !hasText {
			return otherPart(m)
		}
		return Part{Type: PartHeading, Text: text, Level: intField(m, "level")}
	case PartList:
		items, ok := stringItems(m["items"])
		if !ok {
			return otherPart(m)
		}
		return Part{Type: PartList, Items: items}
	default:
		return otherPart(m)
	}
}

func otherPart(v any) Part {
	return Part{Type: PartOther, JSON: bestEffortJSON(v)}
}

// bestEffortJSON marshals v, falling back to fmt on non-serializable values
// (channels, funcs, cycles).
func bestEffortJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func intField(m map[string]any, key string) int {
	switch n := m[key].(type) {
	case int:
		return n
	case float64:
		// JSON decoding produces float64 for numbers.
		return int(n)
	default:
		return 0
	}
}

func stringItems(v any) ([]string, bool) {
	switch items := v.(type) {
	case []string:
		out := make([]string, len(items))
		copy(out, items)
		return out, true
	case []any:
		out := make([]string, 0, len(items))
		for _, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
