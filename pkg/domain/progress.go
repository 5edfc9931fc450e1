package domain

import "time"

// Description is the read-only view of one node produced by a print pass.
type Description struct {
	Type        string        `json:"type"`
	Label       string        `json:"label"`
	State       RunState      `json:"state"`
	Processor   string        `json:"processor"`
	ParentLabel string        `json:"parent_label,omitempty"`
	ParentID    int           `json:"parent_id"`
	Code        int           `json:"progress_code"`
	Message     string        `json:"progress_message,omitempty"`
	Period      time.Duration `json:"progress_period"`
	Time        time.Time     `json:"progress_time"`
	Params      Params        `json:"params,omitempty"`
}

// NodeProgress pairs a node id with its description.
type NodeProgress struct {
	ID int `json:"id"`
	Description
}

// Snapshot is the ordered result of a print pass, root first.
type Snapshot []NodeProgress

// Root returns the entry of the root node.
func (s Snapshot) Root() (NodeProgress, bool) {
	for _, p := range s {
		if p.ParentID < 0 {
			return p, true
		}
	}
	return NodeProgress{}, false
}

// Labels returns the node labels in snapshot order.
func (s Snapshot) Labels() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Label
	}
	return out
}

// ProgressEvent is one snapshot published for a task.
type ProgressEvent struct {
	TaskID   int       `json:"task_id"`
	Agent    string    `json:"agent,omitempty"`
	Time     time.Time `json:"time"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Done reports whether the root has reached a terminal state. Its progress
// code is then 1 on success and -1 otherwise.
func (e ProgressEvent) Done() bool {
	root, ok := e.Snapshot.Root()
	if !ok {
		return false
	}
	return root.State.Terminal()
}
