package cli

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiDim   = "\x1b[2m"
)

// palette wraps text in ANSI codes when the output is a colour terminal.
type palette struct {
	enabled bool
}

func paletteFor(w io.Writer) palette {
	// NO_COLOR convention: https://no-color.org/
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return palette{}
	}
	f, ok := w.(*os.File)
	if !ok {
		return palette{}
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return palette{}
	}
	return palette{enabled: os.Getenv("TERM") != "dumb"}
}

func (p palette) wrap(code, s string) string {
	if !p.enabled {
		return s
	}
	return code + s + ansiReset
}

func (p palette) ok(s string) string    { return p.wrap(ansiGreen, s) }
func (p palette) err(s string) string   { return p.wrap(ansiRed, s) }
func (p palette) bold(s string) string  { return p.wrap(ansiBold, s) }
func (p palette) faint(s string) string { return p.wrap(ansiDim, s) }
