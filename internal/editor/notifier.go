package editor

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// TerminalNotifier prints styled notifications to a terminal stream.
type TerminalNotifier struct {
	mu   sync.Mutex
	w    io.Writer
	info lipgloss.Style
	warn lipgloss.Style
	err  lipgloss.Style
}

// NewTerminalNotifier writes notifications to w.
func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	return &TerminalNotifier{
		w:    w,
		info: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		warn: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		err:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

func (n *TerminalNotifier) Info(msg string)  { n.print(n.info, "ℹ", msg) }
func (n *TerminalNotifier) Warn(msg string)  { n.print(n.warn, "⚠", msg) }
func (n *TerminalNotifier) Error(msg string) { n.print(n.err, "✗", msg) }

func (n *TerminalNotifier) print(style lipgloss.Style, icon, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, style.Render(icon+" "+msg))
}
