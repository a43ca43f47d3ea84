package render

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
)

//go:embed templates/meme.html
var templateFS embed.FS

// PageData is passed to the caption template.
type PageData struct {
	Image   template.URL // data: URL of the original photo
	Caption string
	Width   int // scaled image width
	Height  int // scaled image height
}

// Template is a parsed caption page.
type Template struct {
	tmpl *template.Template
}

// LoadTemplate parses the template at path, or the embedded default when path is empty.
func LoadTemplate(path string) (*Template, error) {
	var (
		src  []byte
		err  error
		name = "meme.html"
	)
	if path == "" {
		src, err = templateFS.ReadFile("templates/meme.html")
	} else {
		src, err = os.ReadFile(path)
		name = path
	}
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	t, err := template.New(name).Option("missingkey=error").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &Template{tmpl: t}, nil
}

// Execute renders the page HTML.
func (t *Template) Execute(data PageData) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// DataURL encodes img as a data: URL usable as an <img> source.
func DataURL(contentType string, img []byte) template.URL {
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(img))
}
