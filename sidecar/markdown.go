package sidecar

import (
	"bytes"

	treeblood "github.com/wyatt915/goldmark-treeblood"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// NoteRenderer converts speaker notes written in Markdown to HTML for the
// presenter view. Inline and display math ($...$, $$...$$) becomes MathML.
// Raw HTML in notes is not passed through. Safe for concurrent use.
type NoteRenderer struct {
	md goldmark.Markdown
}

func NewNoteRenderer() *NoteRenderer {
	return &NoteRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				treeblood.MathML(),
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
			),
		),
	}
}

// HTML renders note. An empty note renders to an empty string.
func (r *NoteRenderer) HTML(note string) (string, error) {
	if note == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(note), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
