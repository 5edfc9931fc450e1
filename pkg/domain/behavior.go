package domain

import "context"

// Backend receives the effects a skill has on the world.
// Get returns ErrKeyNotFound for a missing key.
type Backend interface {
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// Behavior is the logic of a skill type. The executor calls OnStart on the
// first tick of a node, Execute on every tick of a leaf, OnPreempt when a
// running node is preempted and OnEnd once the node reaches a terminal state.
type Behavior interface {
	OnStart(ctx context.Context, sc *SkillContext) error
	Execute(ctx context.Context, sc *SkillContext) (RunState, error)
	OnPreempt(ctx context.Context, sc *SkillContext) RunState
	OnEnd(ctx context.Context, sc *SkillContext)
}

// SkillContext is what a behavior sees of its node during one tick.
type SkillContext struct {
	Node *Node
	// Params holds the node parameters with bindings resolved.
	Params  Params
	Backend Backend
	// Simulated is set when effects are redirected away from the real backend.
	Simulated bool

	reported bool
}

// Tick returns how many ticks the node completed before this one.
func (c *SkillContext) Tick() int {
	return c.Node.Ticks
}

// Progress records a progress code and message on the node.
func (c *SkillContext) Progress(code int, msg string) {
	c.Node.Progress.Code = code
	c.Node.Progress.Message = msg
	c.reported = true
}

// Reported tells whether Progress was called through this context.
func (c *SkillContext) Reported() bool {
	return c.reported
}

// SetOutput writes a parameter on the node so that later nodes can bind to it.
func (c *SkillContext) SetOutput(key string, value any) {
	if c.Node.Params == nil {
		c.Node.Params = Params{}
	}
	c.Node.Params[key] = value
	if c.Params != nil {
		c.Params[key] = value
	}
}
