package cli

import (
	"os"

	"golang.org/x/term"
)

// IsOutputTerminal reports whether stdout is a TTY. Piped or redirected
// output (CI, shell pipelines) gets plain text without ANSI color.
func IsOutputTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
