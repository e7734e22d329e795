package reporter

import (
	"os"

	"github.com/mattn/go-isatty"
)

// NewForOutput picks the terminal reporter when out is an attached TTY and
// the JSON reporter otherwise (piped to a supervisor or file), promoting
// go-isatty from the teacher's indirect, color-internal use to a direct
// dependency driving this choice explicitly (§6).
func NewForOutput(out *os.File) Reporter {
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		return NewTerminalReporter()
	}
	return NewJSONReporterWithWriter(out)
}
