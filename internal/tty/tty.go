// Package tty provides the line-oriented console used by the monitor
// command.
package tty

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// ErrNoTTY is returned if standard input is not a terminal. The monitor
// command falls back to running the commands given as its arguments, one
// per argument and without a prompt, rather than failing outright.
var ErrNoTTY error = errors.New("console: not a TTY")

// Console is an interactive line-oriented terminal session for the monitor
// command. Unlike a raw single-keystroke serial console, it reads whole
// lines at a time -- there is no keyboard/display device to poll here, only
// commands and their output.
type Console struct {
	in    *os.File
	fd    int
	state *term.State
	term  *term.Terminal
}

// NewConsole puts sin into raw mode and wraps it in a readline-style prompt
// over sout. Callers must call Restore when finished to return the terminal
// to its original state. If sin is not a terminal, ErrNoTTY is returned.
func NewConsole(sin *os.File, sout io.Writer, prompt string) (*Console, error) {
	fd := int(sin.Fd())

	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{sin, sout}, prompt)

	if w, h, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ); err == nil {
		_ = t.SetSize(int(w.Col), int(w.Row))
	}

	return &Console{in: sin, fd: fd, state: saved, term: t}, nil
}

// ReadLine reads a single command line from the console, applying the
// terminal's line editing (backspace, history, ctrl-C).
func (c *Console) ReadLine() (string, error) {
	return c.term.ReadLine()
}

// Writer returns the writer commands should use to print their output,
// routed through the same terminal so prompts redraw cleanly.
func (c *Console) Writer() io.Writer {
	return c.term
}

// Restore returns the terminal to its state from before NewConsole.
func (c *Console) Restore() error {
	return term.Restore(c.fd, c.state)
}
