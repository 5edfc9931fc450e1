package manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

// Action is a command verb.
type Action string

// Actions accepted by Command.
const (
	ActionStart    Action = "START"
	ActionPreempt  Action = "PREEMPT"
	ActionPause    Action = "PAUSE"
	ActionTickOnce Action = "TICK_ONCE"
)

// ParseAction accepts the action names in any case.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case ActionStart, ActionPreempt, ActionPause, ActionTickOnce:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownAction, s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Command is a client request. ExecutionID is AllTasks to create a task
// from Skills (START, TICK_ONCE) or to address every task (PREEMPT, PAUSE).
type Command struct {
	Action      Action             `json:"action"`
	ExecutionID int                `json:"execution_id"`
	Skills      []domain.SkillSpec `json:"skills,omitempty"`
	Simulate    bool               `json:"simulate,omitempty"`
	Track       []string           `json:"track,omitempty"`
}

// NewCommand returns a command addressing a new task, or every task.
func NewCommand(action Action, skills ...domain.SkillSpec) Command {
	return Command{Action: action, ExecutionID: AllTasks, Skills: skills}
}

// Response reports the outcome of a command and the task it applied to.
type Response struct {
	OK          bool   `json:"ok"`
	ExecutionID int    `json:"execution_id"`
	Error       string `json:"error,omitempty"`
}

// Command runs cmd. Failures are reported in the response, never panics.
func (m *Manager) Command(ctx context.Context, cmd Command) Response {
	id, err := m.command(ctx, cmd)
	m.metrics.CommandHandled(string(cmd.Action), err == nil)
	if err != nil {
		m.logger.Warn("command failed", "action", cmd.Action, "task_id", cmd.ExecutionID, "err", err)
		return Response{OK: false, ExecutionID: id, Error: err.Error()}
	}
	m.logger.Info("command", "action", cmd.Action, "task_id", id)
	return Response{OK: true, ExecutionID: id}
}

func (m *Manager) command(ctx context.Context, cmd Command) (int, error) {
	id := cmd.ExecutionID
	switch cmd.Action {
	case ActionStart:
		if id == AllTasks {
			var err error
			if id, err = m.AddTask(cmd.Skills); err != nil {
				return AllTasks, err
			}
		}
		return id, m.ExecuteTask(id, cmd.Simulate, cmd.Track...)

	case ActionPreempt:
		return id, m.PreemptTask(ctx, id)

	case ActionPause:
		if err := m.checkTask(id); err != nil {
			return id, err
		}
		m.Pause(id)
		return id, nil

	case ActionTickOnce:
		if id == AllTasks && len(cmd.Skills) > 0 {
			tree, err := m.build(cmd.Skills)
			if err != nil {
				return AllTasks, err
			}
			id = m.sched.AddPausedTask(tree, tree.PreferredID(), 1)
		} else {
			if err := m.checkTask(id); err != nil {
				return id, err
			}
			m.TickOnce(id)
		}
		// Starting the loop for every task keeps the tick-once count in place.
		m.start(m.executor(cmd.Simulate, cmd.Track), AllTasks)
		return id, nil
	}
	return id, fmt.Errorf("%w: %q", domain.ErrUnknownAction, cmd.Action)
}
