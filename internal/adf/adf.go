package adf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// blockTypes end with a newline once their children are written.
var blockTypes = map[string]bool{
	"paragraph": true,
	"heading":   true,
	"codeBlock": true,
}

// ToPlainText converts a decoded description value into plain text.
// Strings are returned unchanged and nil yields "". Documents are walked depth-first;
// malformed nodes and unknown types never cause a failure, they just add no text.
func ToPlainText(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		var b strings.Builder
		walk(&b, v)
		out := strings.TrimSpace(b.String())
		return excessNewlines.ReplaceAllString(out, "\n\n")
	case []any:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// FromJSON decodes raw description JSON and flattens it with ToPlainText.
// Undecodable input is returned verbatim.
func FromJSON(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return ToPlainText(v)
}

// walk appends the text of node and its descendants to b.
func walk(b *strings.Builder, node map[string]any) {
	typ, _ := node["type"].(string)

	if typ == "listItem" {
		b.WriteString("\n• ")
	}
	if text, ok := node["text"].(string); ok {
		b.WriteString(text)
	}
	if typ == "hardBreak" {
		b.WriteString("\n")
	}

	children, _ := node["content"].([]any)
	for _, c := range children {
		child, ok := c.(map[string]any)
		if !ok {
			continue
		}
		walk(b, child)
		if childType, _ := child["type"].(string); blockTypes[childType] {
			b.WriteString("\n")
		}
	}
}
