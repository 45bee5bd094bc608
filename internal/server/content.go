package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
)

//go:embed web/index.html web/about.md web/footer.md
var webFS embed.FS

// content is the parsed page template plus the markdown blocks rendered once
// at startup.
type content struct {
	page   *template.Template
	about  template.HTML
	footer template.HTML
}

func loadContent() (*content, error) {
	page, err := template.ParseFS(webFS, "web/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	md := goldmark.New()
	about, err := renderMarkdown(md, "web/about.md")
	if err != nil {
		return nil, err
	}
	footer, err := renderMarkdown(md, "web/footer.md")
	if err != nil {
		return nil, err
	}

	return &content{page: page, about: about, footer: footer}, nil
}

// renderMarkdown converts an embedded markdown file to HTML. The files ship
// with the binary, so their output is trusted.
func renderMarkdown(md goldmark.Markdown, name string) (template.HTML, error) {
	src, err := webFS.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}
