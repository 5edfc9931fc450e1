package domain

import (
	"fmt"
	"strings"
)

// Composition selects how a node combines the RunState of its children.
// It is resolved from the skill library when the tree is built.
type Composition int

const (
	// Sequential ticks children in order and stops at the first one that
	// is not successful.
	Sequential Composition = iota
	// Selector ticks children in order and stops at the first success.
	Selector
	// ParallelFf ticks every unfinished child and ends on the first failure.
	ParallelFf
	// ParallelFs ticks every unfinished child and ends on the first child
	// that stops, whatever its outcome.
	ParallelFs
	// NoFail behaves like Sequential but reports a failure as a success.
	NoFail
)

var compositionNames = [...]string{
	Sequential: "Sequential",
	Selector:   "Selector",
	ParallelFf: "ParallelFf",
	ParallelFs: "ParallelFs",
	NoFail:     "NoFail",
}

func (c Composition) String() string {
	if c < 0 || int(c) >= len(compositionNames) {
		return fmt.Sprintf("Composition(%d)", int(c))
	}
	return compositionNames[c]
}

// Parallel reports whether all unfinished children are ticked on every pass.
func (c Composition) Parallel() bool {
	return c == ParallelFf || c == ParallelFs
}

// MarshalText encodes the composition by name.
func (c Composition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts any name accepted by ParseComposition.
func (c *Composition) UnmarshalText(text []byte) error {
	v, err := ParseComposition(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseComposition is case-insensitive. An empty name is Sequential.
func ParseComposition(name string) (Composition, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sequential", "sequence":
		return Sequential, nil
	case "selector", "fallback":
		return Selector, nil
	case "parallelff", "parallel":
		return ParallelFf, nil
	case "parallelfs":
		return ParallelFs, nil
	case "nofail":
		return NoFail, nil
	}
	return Sequential, fmt.Errorf("unknown composition %q", name)
}
