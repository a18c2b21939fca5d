package naming

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// ErrNoTerminal is returned by TerminalReviewer when input is not interactive.
var ErrNoTerminal = errors.New("review needs an interactive terminal")

// TerminalReviewer prompts on a terminal and reads one line per cluster.
type TerminalReviewer struct {
	In  io.Reader
	Out io.Writer
	// Interactive overrides TTY detection; nil means detect from In.
	Interactive *bool

	once  sync.Once
	lines chan answerLine
}

type answerLine struct {
	text string
	err  error
}

// readLines feeds t.lines from In. It is the only reader of In for the
// reviewer's lifetime and closes the channel after the first read error.
func (t *TerminalReviewer) readLines() {
	r := bufio.NewReader(t.In)
	defer close(t.lines)
	for {
		s, err := r.ReadString('\n')
		t.lines <- answerLine{s, err}
		if err != nil {
			return
		}
	}
}

// NewTerminalReviewer reviews on stdin and stderr.
func NewTerminalReviewer() *TerminalReviewer {
	return &TerminalReviewer{In: os.Stdin, Out: os.Stderr}
}

func (t *TerminalReviewer) interactive() bool {
	if t.Interactive != nil {
		return *t.Interactive
	}
	f, ok := t.In.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Review prints the cluster summary and waits for an answer. Context
// cancellation interrupts the wait.
func (t *TerminalReviewer) Review(ctx context.Context, req ReviewRequest) (string, error) {
	if !t.interactive() {
		return "", ErrNoTerminal
	}
	t.once.Do(func() {
		t.lines = make(chan answerLine)
		go t.readLines()
	})

	fmt.Fprintf(t.Out, "\n%s cluster %s\n", req.Axis, req.Placeholder)
	fmt.Fprintf(t.Out, "  prompt: %s\n", strings.Join(req.Prompt, ", "))
	if req.SheetPath != "" {
		fmt.Fprintf(t.Out, "  contact sheet: %s\n", req.SheetPath)
	}
	if req.Sensitive {
		fmt.Fprintln(t.Out, "  note: every sample carries a blacklisted tag")
	}
	if len(req.Existing) > 0 {
		fmt.Fprintf(t.Out, "  existing names: %s\n", strings.Join(req.Existing, ", "))
	}
	fmt.Fprintf(t.Out, "Press ENTER to keep %q, type a new name, or answer n/no if this is not one group: ", req.Placeholder)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-t.lines:
		if !ok {
			return "", nil
		}
		if l.err != nil && !errors.Is(l.err, io.EOF) {
			return "", fmt.Errorf("reading answer: %w", l.err)
		}
		return strings.TrimSpace(l.text), nil
	}
}

// AcceptReviewer keeps every placeholder. It stands in for a human when the
// run is not interactive.
type AcceptReviewer struct{}

// Review returns an empty answer, which accepts the placeholder.
func (AcceptReviewer) Review(context.Context, ReviewRequest) (string, error) {
	return "", nil
}
