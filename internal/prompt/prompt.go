// Package prompt collects interactive input through an injectable
// reader/writer pair so destructive flows can be exercised with scripted
// input in tests. All prompts in the tool funnel through here; business
// logic never touches the terminal directly.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/savaki/tf-bootstrap/internal/errors"
)

// Prompter reads answers line by line from an input source.
type Prompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// New returns a Prompter over the given streams.
func New(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Ask prints the question and returns the answer, falling back to def on
// an empty line.
func (p *Prompter) Ask(question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.writer, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(p.writer, "%s: ", question)
	}

	answer, err := p.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Say writes an informational line to the prompt's output stream, keeping
// wizard chatter on the same stream as the questions.
func (p *Prompter) Say(message string) {
	fmt.Fprintln(p.writer, message)
}

// Confirm asks a y/N question, defaulting to no.
func (p *Prompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.writer, "%s [y/N]: ", question)

	answer, err := p.readLine()
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// ConfirmPhrase requires the operator to type phrase exactly
// (case-sensitive). Anything else yields ErrConfirmationMismatch.
func (p *Prompter) ConfirmPhrase(question, phrase string) error {
	fmt.Fprintf(p.writer, "%s\nType %q to continue: ", question, phrase)

	answer, err := p.readLine()
	if err != nil {
		return err
	}
	if answer != phrase {
		return fmt.Errorf("%w (expected %q)", apperrors.ErrConfirmationMismatch, phrase)
	}
	return nil
}
