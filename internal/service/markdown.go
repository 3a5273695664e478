package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// MarkdownRenderer turns post bodies into HTML. Raw HTML in the source is dropped.
type MarkdownRenderer struct {
	md goldmark.Markdown
}

func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// Render converts body to HTML.
func (r *MarkdownRenderer) Render(body string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// PlainExcerpt extracts the visible text of an HTML fragment, collapses whitespace and
// cuts it to at most limit runes.
func PlainExcerpt(fragment string, limit int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")

	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text, nil
	}
	return strings.TrimSpace(string(runes[:limit])) + "...", nil
}
