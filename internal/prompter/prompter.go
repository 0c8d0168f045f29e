package prompter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prompter asks yes/no questions before destructive operations.
type Prompter interface {
	Confirm(question string) (bool, error)
}

type TextPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func New(in io.Reader, out io.Writer) *TextPrompter {
	return &TextPrompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Confirm defaults to no. Closed input (cron, CI, piped stdin) counts as no.
func (p *TextPrompter) Confirm(q string) (bool, error) {
	if _, err := fmt.Fprintf(p.out, "%s [y/N]: ", q); err != nil {
		return false, err
	}

	resp, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(resp)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Always answers every question with the same value.
type Always bool

func (a Always) Confirm(string) (bool, error) { return bool(a), nil }
