package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"LocalChat/internal/session"
)

const (
	StyleAuto  = "auto"
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
	StyleASCII = "ascii"
)

var knownStyles = map[string]bool{
	StyleAuto:     true,
	StyleDark:     true,
	StyleLight:    true,
	StyleNoTTY:    true,
	StyleASCII:    true,
	"dracula":     true,
	"tokyo-night": true,
	"pink":        true,
}

// ValidStyle reports whether style names a built-in glamour style
func ValidStyle(style string) bool {
	return knownStyles[style]
}

// Renderer formats replies according to their display hint. Plain text is
// returned unchanged; rich text goes through glamour.
type Renderer struct {
	opts Options

	// glamour.TermRenderer is not safe for concurrent Render calls
	mu   sync.Mutex
	term *glamour.TermRenderer
}

// New creates a Renderer. The glamour renderer is built on first use.
func New(opts Options) (*Renderer, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultOptions().Width
	}
	if opts.Style == "" {
		opts.Style = StyleAuto
	}
	if !ValidStyle(opts.Style) {
		return nil, fmt.Errorf("unknown render style %q", opts.Style)
	}
	return &Renderer{opts: opts}, nil
}

// Options returns the options the renderer was built with
func (r *Renderer) Options() Options {
	return r.opts
}

// Render formats text for display. If markdown rendering fails the text is
// returned as is along with the error.
func (r *Renderer) Render(text string, format session.Format) (string, error) {
	if format != session.FormatRich {
		return text, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.term == nil {
		term, err := createRenderer(r.opts)
		if err != nil {
			return text, fmt.Errorf("failed to create renderer: %w", err)
		}
		r.term = term
	}

	out, err := r.term.Render(text)
	if err != nil {
		return text, fmt.Errorf("failed to render markdown: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}

func createRenderer(opts Options) (*glamour.TermRenderer, error) {
	rendererOpts := []glamour.TermRendererOption{
		glamour.WithWordWrap(opts.Width),
		glamour.WithPreservedNewLines(),
	}

	if opts.Style == StyleAuto {
		rendererOpts = append(rendererOpts, glamour.WithAutoStyle())
	} else {
		rendererOpts = append(rendererOpts, glamour.WithStandardStyle(opts.Style))
	}

	if opts.EnableEmoji {
		rendererOpts = append(rendererOpts, glamour.WithEmoji())
	}

	return glamour.NewTermRenderer(rendererOpts...)
}
