package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const documentIndent = "  "

// RenderDocument renders decoded JSON (maps, slices and scalars as produced by
// encoding/json or gabs) as indented, colored text. Keys are sorted so the
// output is stable.
func RenderDocument(node interface{}) string {
	return renderNode(node, 0)
}

func renderNode(node interface{}, depth int) string {
	var out strings.Builder
	indent := strings.Repeat(documentIndent, depth)

	switch v := node.(type) {
	case map[string]interface{}:
		if len(v) == 0 {
			return SyntaxDashStyle.Render("{") + SyntaxDashStyle.Render("}")
		}

		out.WriteString(SyntaxDashStyle.Render("{") + "\n")
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for i, key := range keys {
			out.WriteString(indent + documentIndent)
			out.WriteString(SyntaxKeyStyle.Render(fmt.Sprintf("%q", key)))
			out.WriteString(": ")
			out.WriteString(renderNode(v[key], depth+1))
			if i < len(keys)-1 {
				out.WriteString(",")
			}
			out.WriteString("\n")
		}
		out.WriteString(indent + SyntaxDashStyle.Render("}"))

	case []interface{}:
		if len(v) == 0 {
			return SyntaxNumberStyle.Render("[") + SyntaxNumberStyle.Render("]")
		}

		out.WriteString(SyntaxNumberStyle.Render("[") + "\n")
		for i, item := range v {
			out.WriteString(indent + documentIndent)
			out.WriteString(renderNode(item, depth+1))
			if i < len(v)-1 {
				out.WriteString(",")
			}
			out.WriteString("\n")
		}
		out.WriteString(indent + SyntaxNumberStyle.Render("]"))

	case []string:
		items := make([]interface{}, len(v))
		for i, s := range v {
			items[i] = s
		}
		return renderNode(items, depth)

	case string:
		return fmt.Sprintf("%q", v)

	case bool:
		return SyntaxNumberStyle.Render(fmt.Sprintf("%v", v))

	case nil:
		return SyntaxNullStyle.Render("null")

	default:
		// numbers and anything else encoding/json knows how to write
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return SyntaxNumberStyle.Render(string(b))
	}

	return out.String()
}
