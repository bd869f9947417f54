package tui

import (
	"fmt"
	"io"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintBanner writes the warden banner to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{` __      __                 _`, "#818cf8"},
		{` \ \    / /_ _ _ _ __ _ ___| |___ _ _`, "#a78bfa"},
		{`  \ \/\/ / _' | '_/ _' / -_) / _ \ ' \`, "#c084fc"},
		{`   \_/\_/\__,_|_| \__,_\___|_\___/_||_|`, "#e879f9"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("   "+version).Faint())
	fmt.Fprintln(w)
}

// StateLabel renders a driver state, colored when the terminal supports it.
func StateLabel(s domain.DriverState) string {
	p := termenv.ColorProfile()
	var color string
	switch s {
	case domain.StateRunning:
		color = "#22c55e"
	case domain.StateCrashed:
		color = "#ef4444"
	case domain.StateStopped:
		color = "#6b7280"
	default:
		color = "#eab308"
	}
	return termenv.String(s.String()).Foreground(p.Color(color)).String()
}
