package acp

import "strings"

// MaxFlattenDepth bounds recursion into nested content arrays.
const MaxFlattenDepth = 32

// Flatten reduces a content value to plain text. Strings are returned as-is,
// objects yield their string "text" or else string "content" field, arrays are
// flattened element-wise and concatenated. Anything else yields "".
func Flatten(value any) string {
	var b strings.Builder
	flatten(&b, value, 0)
	return b.String()
}

func flatten(b *strings.Builder, value any, depth int) {
	if depth > MaxFlattenDepth {
		return
	}
	switch v := value.(type) {
	case string:
		b.WriteString(v)
	case map[string]any:
		if text, ok := asString(v["text"]); ok {
			b.WriteString(text)
			return
		}
		if content, ok := asString(v["content"]); ok {
			b.WriteString(content)
		}
	case []any:
		for _, item := range v {
			flatten(b, item, depth+1)
		}
	}
}
