// Package render turns assistant replies into terminal output.
package render

// Options configures the markdown renderer
type Options struct {
	// Width is the word wrap column (default: 100)
	Width int

	// Style is a glamour standard style name or "auto" to follow the terminal
	Style string

	// EnableEmoji converts :emoji: to unicode characters
	EnableEmoji bool
}

// DefaultOptions returns the default configuration
func DefaultOptions() Options {
	return Options{
		Width:       100,
		Style:       StyleAuto,
		EnableEmoji: true,
	}
}

// WithWidth returns Options with the specified width
func (o Options) WithWidth(width int) Options {
	o.Width = width
	return o
}

// WithStyle returns Options with the specified style
func (o Options) WithStyle(style string) Options {
	o.Style = style
	return o
}
