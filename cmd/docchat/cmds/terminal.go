package cmds

import (
	"io"

	"github.com/mattn/go-isatty"
)

type fder interface {
	Fd() uintptr
}

func isTerminal(v any) bool {
	f, ok := v.(fder)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// useTUI reports whether a run opens the terminal UI. Redirected input or
// output falls back to console mode.
func useTUI(noTUI bool, in io.Reader, out io.Writer) bool {
	return !noTUI && isTerminal(in) && isTerminal(out)
}
