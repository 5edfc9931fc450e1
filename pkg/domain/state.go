package domain

import "fmt"

// RunState is the result of one traversal pass over a node or a whole tree.
type RunState int

const (
	StateIdle RunState = iota
	StateRunning
	StateSuccess
	StateFailure
	StateError
	StatePreempted
)

var runStateNames = [...]string{
	StateIdle:      "Idle",
	StateRunning:   "Running",
	StateSuccess:   "Success",
	StateFailure:   "Failure",
	StateError:     "Error",
	StatePreempted: "Preempted",
}

func (s RunState) String() string {
	if s < 0 || int(s) >= len(runStateNames) {
		return fmt.Sprintf("RunState(%d)", int(s))
	}
	return runStateNames[s]
}

// Terminal reports whether the state ends a task.
// Idle and Running keep a task registered; every other state removes it.
func (s RunState) Terminal() bool {
	return s != StateIdle && s != StateRunning
}

// MarshalText encodes the state by name so snapshots stay readable on the wire.
func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *RunState) UnmarshalText(text []byte) error {
	st, err := ParseRunState(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseRunState returns the state with the given name.
func ParseRunState(name string) (RunState, error) {
	for i, n := range runStateNames {
		if n == name {
			return RunState(i), nil
		}
	}
	return StateIdle, fmt.Errorf("unknown run state %q", name)
}
