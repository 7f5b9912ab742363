package console

import (
	"strings"

	"github.com/peterh/liner"
)

// LinerReader reads input with line editing and in-memory history
type LinerReader struct {
	line *liner.State
}

// NewLinerReader takes over the terminal until Close is called
func NewLinerReader() *LinerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return &LinerReader{line: line}
}

// Prompt reads one line. Ctrl+C returns liner.ErrPromptAborted.
func (r *LinerReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close restores the terminal
func (r *LinerReader) Close() error {
	return r.line.Close()
}
