package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderDocument_SortedKeys(t *testing.T) {
	out := RenderDocument(map[string]interface{}{
		"url":   map[string]interface{}{"path": "/"},
		"event": map[string]interface{}{"duration": 0.5, "type": []interface{}{"access"}},
	})

	assert.Less(t, strings.Index(out, `"event"`), strings.Index(out, `"url"`))
	assert.Contains(t, out, `"/"`)
	assert.Contains(t, out, SyntaxNumberStyle.Render("0.5"))
	assert.Contains(t, out, `"access"`)
}

func TestRenderDocument_Scalars(t *testing.T) {
	assert.Equal(t, `"x"`, RenderDocument("x"))
	assert.Equal(t, SyntaxNumberStyle.Render("true"), RenderDocument(true))
	assert.Equal(t, SyntaxNullStyle.Render("null"), RenderDocument(nil))
	assert.Equal(t, SyntaxNumberStyle.Render("42"), RenderDocument(42))
	assert.Equal(t, SyntaxDashStyle.Render("{")+SyntaxDashStyle.Render("}"), RenderDocument(map[string]interface{}{}))
	assert.Equal(t, RenderDocument([]interface{}{"a", "b"}), RenderDocument([]string{"a", "b"}))
}

func TestRenderDocument_Indent(t *testing.T) {
	out := RenderDocument(map[string]interface{}{"a": map[string]interface{}{"b": "c"}})
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[2], "    "))
}
