package manager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/ports"
)

// World model keys shared by every agent.
const (
	AgentsKey       = "skiros:agents"
	SkillsKeyPrefix = "skiros:skills:"

	registrationLock = "skiros:agents:lock"
	registrationTTL  = 10 * time.Second
)

// SkillsKey is the world model key holding the skills of agent.
func SkillsKey(agent string) string {
	return SkillsKeyPrefix + agent
}

// Describe converts a template to the form stored in the world model and
// returned to clients.
func Describe(t ports.SkillTemplate) map[string]any {
	return map[string]any{
		"type":        t.Type,
		"description": t.Description,
		"composition": t.Composition.String(),
		"cost":        t.Cost,
		"params":      map[string]any(t.DefaultParams.Clone()),
	}
}

// Register adds the agent to the agent list of the world model and writes
// the skills it offers. Registering again refreshes the skills.
func (m *Manager) Register(ctx context.Context) error {
	unlock, err := m.lock(ctx)
	if err != nil {
		return fmt.Errorf("register %s: %w", m.agent, err)
	}
	defer unlock()

	agents, err := m.agents(ctx)
	if err != nil {
		return fmt.Errorf("register %s: %w", m.agent, err)
	}
	if !slices.Contains(agents, m.agent) {
		agents = append(agents, m.agent)
		if err := m.wm.Set(ctx, AgentsKey, toAny(agents)); err != nil {
			return fmt.Errorf("register %s: %w", m.agent, err)
		}
	}

	skills := m.Skills()
	descs := make([]any, 0, len(skills))
	for _, t := range skills {
		descs = append(descs, Describe(t))
	}
	if err := m.wm.Set(ctx, SkillsKey(m.agent), descs); err != nil {
		return fmt.Errorf("register %s: %w", m.agent, err)
	}

	m.mu.Lock()
	m.registered = true
	m.mu.Unlock()
	m.logger.Info("agent registered", "skills", len(descs))
	return nil
}

// Shutdown preempts every task and removes the agent and its skills from
// the world model.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	if err := m.ClearTasks(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear tasks: %w", err))
	}

	m.mu.Lock()
	registered := m.registered
	m.registered = false
	m.mu.Unlock()
	if registered {
		errs = append(errs, m.unregister(ctx))
	}

	m.progressMu.Lock()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	m.progressMu.Unlock()

	m.logger.Info("skill manager stopped")
	return errors.Join(errs...)
}

func (m *Manager) unregister(ctx context.Context) error {
	unlock, err := m.lock(ctx)
	if err != nil {
		return fmt.Errorf("unregister %s: %w", m.agent, err)
	}
	defer unlock()

	if err := m.wm.Delete(ctx, SkillsKey(m.agent)); err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
		return fmt.Errorf("unregister %s: %w", m.agent, err)
	}
	agents, err := m.agents(ctx)
	if err != nil {
		return fmt.Errorf("unregister %s: %w", m.agent, err)
	}
	agents = slices.DeleteFunc(agents, func(a string) bool { return a == m.agent })
	if err := m.wm.Set(ctx, AgentsKey, toAny(agents)); err != nil {
		return fmt.Errorf("unregister %s: %w", m.agent, err)
	}
	return nil
}

// Agents lists the agents registered in the world model.
func (m *Manager) Agents(ctx context.Context) ([]string, error) {
	return m.agents(ctx)
}

func (m *Manager) agents(ctx context.Context) ([]string, error) {
	v, err := m.wm.Get(ctx, AgentsKey)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected value %T", AgentsKey, v)
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, fmt.Sprint(a))
	}
	return out, nil
}

// lock serializes registration. Without a distributed locker only this
// process is serialized.
func (m *Manager) lock(ctx context.Context) (func(), error) {
	if m.locker == nil {
		m.regMu.Lock()
		return m.regMu.Unlock, nil
	}
	release, err := m.locker.Lock(ctx, registrationLock, registrationTTL)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("registration unlock failed", "err", err)
		}
	}, nil
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
