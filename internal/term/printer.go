// Package term narrates pipeline progress on stdout. Markers are colored
// only when stdout is a terminal.
package term

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiBold   = "\x1b[1m"
)

type Printer struct {
	Out   io.Writer
	Err   io.Writer
	Color bool
}

// New returns a printer for os.Stdout/os.Stderr with color enabled when
// stdout is a TTY.
func New() *Printer {
	return &Printer{
		Out:   os.Stdout,
		Err:   os.Stderr,
		Color: isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// Stage announces the start of a pipeline stage.
func (p *Printer) Stage(name string) {
	fmt.Fprintf(p.Out, "%s %s\n", p.paint(ansiBold, "==>"), name)
}

func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.Out, "    %s\n", fmt.Sprintf(format, args...))
}

func (p *Printer) OK(format string, args ...any) {
	fmt.Fprintf(p.Out, "    %s %s\n", p.paint(ansiGreen, "[ok]"), fmt.Sprintf(format, args...))
}

func (p *Printer) Skip(format string, args ...any) {
	fmt.Fprintf(p.Out, "    %s %s\n", p.paint(ansiYellow, "[skip]"), fmt.Sprintf(format, args...))
}

func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.Err, "    %s %s\n", p.paint(ansiYellow, "[warn]"), fmt.Sprintf(format, args...))
}

func (p *Printer) Fail(format string, args ...any) {
	fmt.Fprintf(p.Err, "%s %s\n", p.paint(ansiRed, "[fail]"), fmt.Sprintf(format, args...))
}

func (p *Printer) paint(color, s string) string {
	if !p.Color {
		return s
	}
	return color + s + ansiReset
}
