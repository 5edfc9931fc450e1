package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the skill manager banner with the agent name.
func PrintBanner(w io.Writer, agent string) {
	p := termenv.ColorProfile()
	// Teal to blue.
	lines := []struct{ text, color string }{
		{"  ___ _  _____ ___  ___  ___ ", "#2dd4bf"},
		{" / __| |/ /_ _| _ \\/ _ \\/ __|", "#22d3ee"},
		{" \\__ \\ ' < | ||   / (_) \\__ \\", "#38bdf8"},
		{" |___/_|\\_\\___|_|_\\\\___/|___/", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String(" skill manager: "+agent).Faint())
	fmt.Fprintln(w)
}
