// Package render turns accumulated markdown into terminal output.
//
// The markdown engine is glamour; everything in docchat goes through Safe so a
// renderer failure degrades to the raw text instead of losing the message.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
)

type Renderer interface {
	Render(markdown string) (string, error)
}

// Func adapts a plain function to Renderer.
type Func func(markdown string) (string, error)

func (f Func) Render(markdown string) (string, error) {
	return f(markdown)
}

// Plain returns the text unchanged.
var Plain Renderer = Func(func(markdown string) (string, error) {
	return markdown, nil
})

// Settings configures the glamour renderer.
type Settings struct {
	// Style is a glamour standard style name (dark, light, notty, ...) or "auto".
	Style    string
	WordWrap int
}

func NewGlamour(s Settings) (Renderer, error) {
	opts := []glamour.TermRendererOption{}
	switch strings.TrimSpace(s.Style) {
	case "", "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(s.Style))
	}
	if s.WordWrap > 0 {
		opts = append(opts, glamour.WithWordWrap(s.WordWrap))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create glamour renderer")
	}
	return r, nil
}

// Safe renders markdown with r. On error or panic it returns the raw markdown
// together with the failure, so callers can still show the content.
func Safe(r Renderer, markdown string) (out string, err error) {
	if r == nil {
		return markdown, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			out = markdown
			err = fmt.Errorf("renderer panicked: %v", rec)
		}
	}()
	out, err = r.Render(markdown)
	if err != nil {
		return markdown, errors.Wrap(err, "render markdown")
	}
	return out, nil
}
