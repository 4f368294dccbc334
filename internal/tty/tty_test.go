// The test is skipped when stdin is not a terminal (ErrNoTTY). Notably,
// this includes when run with "go test" because it redirects tests'
// standard input/output streams. You can test it by building a test binary
// and running it directly:
//
//	$ go test -c && ./tty.test
package tty_test

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/smoynes/gicits/internal/tty"
)

func TestNewConsole(t *testing.T) {
	var out bytes.Buffer

	console, err := tty.NewConsole(os.Stdin, &out, "its> ")
	if errors.Is(err, tty.ErrNoTTY) {
		t.Skipf("not a terminal: %s", err)
	}

	if err != nil {
		t.Fatalf("NewConsole: %s", err)
	}

	defer func() {
		if err := console.Restore(); err != nil {
			t.Errorf("Restore: %s", err)
		}
	}()

	if console.Writer() == nil {
		t.Error("expected non-nil writer")
	}
}

func TestNewConsole_NotATTY(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %s", err)
	}

	defer r.Close()
	defer w.Close()

	var out bytes.Buffer

	_, err = tty.NewConsole(r, &out, "its> ")
	if !errors.Is(err, tty.ErrNoTTY) {
		t.Errorf("got: %v, want: %v", err, tty.ErrNoTTY)
	}
}
