package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownRenderer_Render(t *testing.T) {
	r := NewMarkdownRenderer()

	out, err := r.Render("# Hello\n\nsome *emphasis*\nnext line")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Hello</h1>")
	assert.Contains(t, out, "<em>emphasis</em>")
	assert.Contains(t, out, "<br")
}

func TestMarkdownRenderer_OmitsRawHTML(t *testing.T) {
	out, err := NewMarkdownRenderer().Render("<script>alert(1)</script>\n\nhello <b>there</b>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<b>")
	assert.Contains(t, out, "raw HTML omitted")
	assert.Contains(t, out, "hello")
}

func TestPlainExcerpt(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		limit    int
		want     string
	}{
		{name: "strips tags", fragment: "<p>Hello <strong>world</strong></p>", limit: 100, want: "Hello world"},
		{name: "collapses whitespace", fragment: "<p>a\n\n   b</p><p>c</p>", limit: 100, want: "a bc"},
		{name: "truncates", fragment: "<p>abcdefghij</p>", limit: 4, want: "abcd..."},
		{name: "no limit", fragment: "<p>abcdefghij</p>", limit: 0, want: "abcdefghij"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlainExcerpt(tt.fragment, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
