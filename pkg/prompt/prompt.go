// Package prompt asks an interactive user which scenario to run.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// Question is printed before reading the choice.
const Question = "Enter 0 to run all scenarios or enter a specific scenario number (1-10) to test a specific scenario:"

// ErrInvalidChoice is returned for anything but a number from 0 to 10.
var ErrInvalidChoice = errors.New("invalid choice, please enter a number between 0 and 10")

// Ask prints the question to out and reads one line from in. 0 stands for
// all scenarios. If in is a file, cancelling ctx aborts the read.
func Ask(ctx context.Context, in io.Reader, out io.Writer) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if _, err := fmt.Fprintln(out, Question); err != nil {
		return 0, fmt.Errorf("writing prompt: %w", err)
	}

	r := in
	if f, ok := in.(*os.File); ok {
		cr, err := cancelreader.NewReader(f)
		if err == nil {
			defer cr.Close()
			stop := context.AfterFunc(ctx, func() { cr.Cancel() })
			defer stop()
			r = cr
		}
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if errors.Is(err, cancelreader.ErrCanceled) {
		return 0, ctx.Err()
	}
	if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
		return 0, fmt.Errorf("reading choice: %w", err)
	}

	return Parse(line)
}

// Parse validates a choice as typed by the user.
func Parse(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 10 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
	return n, nil
}

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
