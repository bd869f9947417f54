package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Notifier surfaces component error messages on a terminal.
// On a TTY the message is rendered as markdown; otherwise it is printed as-is.
type Notifier struct {
	mu     sync.Mutex
	out    io.Writer
	rich   bool
	style  string
	render func(string) (string, error)
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithRich forces markdown rendering on or off.
func WithRich(rich bool) NotifierOption {
	return func(n *Notifier) {
		n.rich = rich
	}
}

// WithStyle selects a glamour standard style ("dark", "light", "notty").
func WithStyle(style string) NotifierOption {
	return func(n *Notifier) {
		n.style = style
	}
}

// NewNotifier writes to out.
func NewNotifier(out io.Writer, opts ...NotifierOption) *Notifier {
	n := &Notifier{out: out, rich: IsTerminal(out)}
	for _, opt := range opts {
		opt(n)
	}
	if n.rich {
		render, err := NewRenderer(n.style, terminalWidth(out))
		if err != nil {
			n.rich = false
		} else {
			n.render = render
		}
	}
	return n
}

// ShowMessage implements ports.Notifier.
func (n *Notifier) ShowMessage(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.rich {
		rendered, err := n.render(text)
		if err == nil {
			_, err = io.WriteString(n.out, rendered)
			return err
		}
	}
	_, err := fmt.Fprintln(n.out, strings.TrimRight(text, "\n"))
	return err
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
