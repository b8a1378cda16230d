package logging

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

// Setup installs the global slog logger backed by charmbracelet/log on stderr.
// Interactive terminals get colored text; anything else (editor plugin pipes,
// CI) gets JSON so the caller can parse it.
func Setup(verbose bool) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, verbose, isTerminal(os.Stderr))))
}

// NewHandler builds the charmbracelet/log handler used by Setup.
func NewHandler(w io.Writer, verbose, tty bool) *charmlog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "catcode",
	})

	if verbose {
		handler.SetLevel(charmlog.DebugLevel)
	} else {
		handler.SetLevel(charmlog.InfoLevel)
	}

	if !tty {
		handler.SetFormatter(charmlog.JSONFormatter)
	}
	return handler
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
