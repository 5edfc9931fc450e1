package graph

import (
	"fmt"
	"strings"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart of a task snapshot.
// Shapes follow the node role:
// - Root: ((Circle))
// - Selector: {Rhombus}
// - Parallel: [[Subroutine]]
// - Default: [Rectangle]
// Nodes are styled by their last run state.
func GenerateMermaid(snapshot domain.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	used := make(map[domain.RunState]bool)
	for _, p := range snapshot {
		opener, closer := "[", "]"
		switch {
		case p.ParentID < 0:
			opener, closer = "((", "))"
		case p.Processor == domain.Selector.String():
			opener, closer = "{", "}"
		case strings.HasPrefix(p.Processor, "Parallel"):
			opener, closer = "[[", "]]"
		}

		label := escape(p.Label)
		if p.Message != "" {
			label += "<br/>" + escape(p.Message)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", nodeID(p.ID), opener, label, closer)
		if p.ParentID >= 0 {
			fmt.Fprintf(&sb, "    %s --> %s\n", nodeID(p.ParentID), nodeID(p.ID))
		}
		used[p.State] = true
	}

	if len(snapshot) == 0 {
		return sb.String()
	}

	sb.WriteString("\n    %% State Styles\n")
	for _, st := range []domain.RunState{
		domain.StateIdle, domain.StateRunning, domain.StateSuccess,
		domain.StateFailure, domain.StateError, domain.StatePreempted,
	} {
		if used[st] {
			fmt.Fprintf(&sb, "    classDef %s %s;\n", className(st), classStyle[st])
		}
	}
	for _, p := range snapshot {
		fmt.Fprintf(&sb, "    class %s %s;\n", nodeID(p.ID), className(p.State))
	}
	return sb.String()
}

// Text is forced black for contrast on either theme.
var classStyle = map[domain.RunState]string{
	domain.StateIdle:      "fill:#eceff1,stroke:#90a4ae,color:#000",
	domain.StateRunning:   "fill:#ffeb3b,stroke:#fbc02d,stroke-width:3px,color:#000",
	domain.StateSuccess:   "fill:#c8e6c9,stroke:#2e7d32,color:#000",
	domain.StateFailure:   "fill:#ffcdd2,stroke:#c62828,color:#000",
	domain.StateError:     "fill:#f48fb1,stroke:#880e4f,stroke-width:3px,color:#000",
	domain.StatePreempted: "fill:#e1f5fe,stroke:#01579b,stroke-dasharray:4,color:#000",
}

func className(s domain.RunState) string {
	return strings.ToLower(s.String())
}

func nodeID(id int) string {
	return fmt.Sprintf("n%d", id)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
