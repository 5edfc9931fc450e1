package domain

import "time"

// Progress is the latest report of a node: a code, a message and the
// time elapsed since the node started.
type Progress struct {
	Code    int           `json:"code"`
	Message string        `json:"message,omitempty"`
	Period  time.Duration `json:"period"`
	Time    time.Time     `json:"time"`
}

// Node is a skill instance inside a task tree.
type Node struct {
	ID          int         `json:"id"`
	Type        string      `json:"type"`
	Label       string      `json:"label"`
	Params      Params      `json:"params,omitempty"`
	Composition Composition `json:"composition"`
	Cost        float64     `json:"cost,omitempty"`
	Children    []*Node     `json:"children,omitempty"`

	State     RunState  `json:"state"`
	Progress  Progress  `json:"progress"`
	Ticks     int       `json:"ticks,omitempty"`
	StartedAt time.Time `json:"-"`

	// Behavior is nil for pure control nodes.
	Behavior Behavior `json:"-"`

	parent *Node
}

// Parent returns the enclosing node, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// AddChild appends c and links it back to n.
func (n *Node) AddChild(c *Node) {
	c.parent = n
	n.Children = append(n.Children, c)
}

// SetChildren replaces the children of n and relinks them.
func (n *Node) SetChildren(children []*Node) {
	n.Children = children
	for _, c := range children {
		c.parent = n
	}
}

// Leaf reports whether the node has no children.
func (n *Node) Leaf() bool {
	return len(n.Children) == 0
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find returns the first node in the subtree with the given label.
func (n *Node) Find(label string) *Node {
	var found *Node
	n.Walk(func(x *Node) bool {
		if found != nil {
			return false
		}
		if x.Label == label {
			found = x
			return false
		}
		return true
	})
	return found
}

// Clone deep-copies the subtree. Behaviors are shared with the original.
func (n *Node) Clone() *Node {
	c := *n
	c.parent = nil
	c.Params = n.Params.Clone()
	c.Children = nil
	for _, child := range n.Children {
		c.AddChild(child.Clone())
	}
	return &c
}

// Reset returns every node in the subtree to Idle.
func (n *Node) Reset() {
	n.Walk(func(x *Node) bool {
		x.State = StateIdle
		x.Progress = Progress{}
		x.Ticks = 0
		x.StartedAt = time.Time{}
		return true
	})
}

// Renumber assigns pre-order ids starting at 0 and relinks parents.
func (n *Node) Renumber() {
	next := 0
	var visit func(x, parent *Node)
	visit = func(x, parent *Node) {
		x.ID = next
		x.parent = parent
		next++
		for _, c := range x.Children {
			visit(c, x)
		}
	}
	visit(n, nil)
}

// TaskTree is a task registered with the scheduler.
type TaskTree struct {
	ID   int   `json:"id"`
	Root *Node `json:"root"`
}

// NewTaskTree wraps root. The tree id stays -1 until the scheduler
// registers it.
func NewTaskTree(root *Node) *TaskTree {
	return &TaskTree{ID: -1, Root: root}
}

// PreferredID is the id generated for the root when the tree was built.
// The scheduler honors it when it is not already live.
func (t *TaskTree) PreferredID() int {
	return t.Root.ID
}

// Label returns the root label.
func (t *TaskTree) Label() string {
	return t.Root.Label
}

// Lookup returns the node with the given label, or nil.
func (t *TaskTree) Lookup(label string) *Node {
	return t.Root.Find(label)
}

// Len counts the nodes of the tree, root included.
func (t *TaskTree) Len() int {
	n := 0
	t.Root.Walk(func(*Node) bool {
		n++
		return true
	})
	return n
}

// Clone deep-copies the tree.
func (t *TaskTree) Clone() *TaskTree {
	return &TaskTree{ID: t.ID, Root: t.Root.Clone()}
}
