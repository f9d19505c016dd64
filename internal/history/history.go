// Package history reads and appends the flat chat transcript that is folded
// into every prompt. The transcript is plain text with no turn structure.
package history

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// NoHistory is rendered in place of an empty transcript.
const NoHistory = "None"

var (
	ErrUnreadable = errors.New("chat history could not be read")
	ErrUnwritable = errors.New("chat history could not be written")
)

// History is the transcript content. The zero value means no history.
type History struct {
	text string
}

// New wraps raw transcript text.
func New(text string) History {
	return History{text: text}
}

// Present reports whether there is any transcript content.
func (h History) Present() bool {
	return h.text != ""
}

// String returns the transcript verbatim, or NoHistory when empty.
func (h History) String() string {
	if !h.Present() {
		return NoHistory
	}
	return h.text
}

// Read loads the transcript at path. An empty file is a valid "no history"
// state; a file that cannot be opened is an error.
func Read(path string) (History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return History{}, fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}
	return New(string(data)), nil
}

// Append adds one question/answer turn to the transcript, creating the file
// if needed.
func Append(path, query, answer string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnwritable, path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatTurn(query, answer)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnwritable, path, err)
	}
	return nil
}

// Clear truncates the transcript to empty, creating it if missing.
func Clear(path string) error {
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnwritable, path, err)
	}
	return nil
}

// FormatTurn renders a turn the way the transcript stores it.
func FormatTurn(query, answer string) string {
	var b strings.Builder
	b.WriteString("Human: ")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n\nAssistant: ")
	b.WriteString(strings.TrimSpace(answer))
	b.WriteString("\n\n")
	return b.String()
}
