// Package tui renders task progress for a terminal.
package tui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/muesli/termenv"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

var stateColors = map[domain.RunState]string{
	domain.StateIdle:      "#9ca3af",
	domain.StateRunning:   "#facc15",
	domain.StateSuccess:   "#4ade80",
	domain.StateFailure:   "#f87171",
	domain.StateError:     "#e879f9",
	domain.StatePreempted: "#60a5fa",
}

// Renderer writes snapshots as an indented tree.
type Renderer struct {
	profile termenv.Profile
	params  bool
}

// NewRenderer returns a renderer for the current terminal. With params set,
// node parameters are listed under each node.
func NewRenderer(params bool) *Renderer {
	return &Renderer{profile: termenv.ColorProfile(), params: params}
}

// NewPlainRenderer returns a renderer that never emits escape codes.
func NewPlainRenderer(params bool) *Renderer {
	return &Renderer{profile: termenv.Ascii, params: params}
}

// State renders a run state in its color.
func (r *Renderer) State(s domain.RunState) string {
	return r.profile.String(s.String()).Foreground(r.profile.Color(stateColors[s])).String()
}

// Render returns the snapshot of one task.
func (r *Renderer) Render(ev domain.ProgressEvent) string {
	var sb strings.Builder

	children := make(map[int][]domain.NodeProgress)
	var roots []domain.NodeProgress
	for _, p := range ev.Snapshot {
		if p.ParentID < 0 {
			roots = append(roots, p)
			continue
		}
		children[p.ParentID] = append(children[p.ParentID], p)
	}

	title := r.profile.String(fmt.Sprintf("task %d", ev.TaskID)).Bold()
	fmt.Fprintf(&sb, "%s\n", title)

	var walk func(p domain.NodeProgress, depth int)
	walk = func(p domain.NodeProgress, depth int) {
		indent := strings.Repeat("  ", depth)
		line := fmt.Sprintf("%s%s [%s]", indent, p.Label, r.State(p.State))
		if p.Message != "" {
			line += " " + r.profile.String(p.Message).Faint().String()
		}
		sb.WriteString(line + "\n")
		if r.params && len(p.Params) > 0 {
			keys := make([]string, 0, len(p.Params))
			for k := range p.Params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&sb, "%s    %s=%v\n", indent, k, p.Params[k])
			}
		}
		for _, c := range children[p.ID] {
			walk(c, depth+1)
		}
	}
	for _, root := range roots {
		walk(root, 1)
	}
	return sb.String()
}

// Write renders ev to w.
func (r *Renderer) Write(w io.Writer, ev domain.ProgressEvent) error {
	_, err := io.WriteString(w, r.Render(ev))
	return err
}
