package skill

import (
	"fmt"
	"sort"
	"sync"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/ports"
)

// DefaultCost is used for templates that do not declare a cost.
const DefaultCost = 1.0

// Library manages the known skill templates.
// Safe for concurrent use.
type Library struct {
	mu         sync.RWMutex
	templates  map[string]ports.SkillTemplate
	advertised map[string]bool
	behaviors  map[string]Factory
}

// NewLibrary creates a library with the built-in behaviors available to
// definitions and no templates.
func NewLibrary() *Library {
	l := &Library{
		templates: make(map[string]ports.SkillTemplate),
		behaviors: make(map[string]Factory),
	}
	for kind, f := range builtins {
		l.behaviors[kind] = f
	}
	return l
}

// Register adds a template. A template with the same type is overwritten.
func (l *Library) Register(t ports.SkillTemplate) error {
	if t.Type == "" {
		return fmt.Errorf("register skill: empty type")
	}
	if t.Cost <= 0 {
		t.Cost = DefaultCost
	}
	if t.DefaultParams == nil {
		t.DefaultParams = domain.Params{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[t.Type] = t
	return nil
}

// Resolve implements ports.SkillResolver.
func (l *Library) Resolve(skillType string) (ports.SkillTemplate, error) {
	l.mu.RLock()
	t, ok := l.templates[skillType]
	l.mu.RUnlock()

	if !ok {
		return ports.SkillTemplate{}, fmt.Errorf("%w: %s", domain.ErrUnknownSkill, skillType)
	}
	t.DefaultParams = t.DefaultParams.Clone()
	return t, nil
}

// Types returns the registered types in ascending order.
func (l *Library) Types() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(l.templates))
	for k := range l.templates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Templates returns every template ordered by type.
func (l *Library) Templates() []ports.SkillTemplate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedLocked(func(string) bool { return true })
}

// Advertise restricts Available to the given types. Calling it with no
// types advertises the whole library again.
func (l *Library) Advertise(types ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(types) == 0 {
		l.advertised = nil
		return nil
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		if _, ok := l.templates[t]; !ok {
			return fmt.Errorf("advertise: %w: %s", domain.ErrUnknownSkill, t)
		}
		set[t] = true
	}
	l.advertised = set
	return nil
}

// Available returns the templates this agent offers to clients.
func (l *Library) Available() []ports.SkillTemplate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedLocked(func(t string) bool {
		return l.advertised == nil || l.advertised[t]
	})
}

func (l *Library) sortedLocked(keep func(string) bool) []ports.SkillTemplate {
	out := make([]ports.SkillTemplate, 0, len(l.templates))
	for k, t := range l.templates {
		if keep(k) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// RegisterBehavior makes a behavior kind available to definitions.
func (l *Library) RegisterBehavior(kind string, f Factory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.behaviors[kind] = f
}

// Define registers templates built from declarative definitions.
func (l *Library) Define(defs ...Definition) error {
	for _, d := range defs {
		t, err := l.template(d)
		if err != nil {
			return err
		}
		if err := l.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Replace swaps every template for the given definitions. The previous
// templates stay in place when a definition is invalid.
func (l *Library) Replace(defs ...Definition) error {
	templates := make([]ports.SkillTemplate, 0, len(defs))
	for _, d := range defs {
		t, err := l.template(d)
		if err != nil {
			return err
		}
		templates = append(templates, t)
	}

	fresh := &Library{templates: make(map[string]ports.SkillTemplate)}
	for _, t := range templates {
		if err := fresh.Register(t); err != nil {
			return err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates = fresh.templates
	for t := range l.advertised {
		if _, ok := l.templates[t]; !ok {
			delete(l.advertised, t)
		}
	}
	return nil
}

func (l *Library) template(d Definition) (ports.SkillTemplate, error) {
	comp, err := domain.ParseComposition(d.Composition)
	if err != nil {
		return ports.SkillTemplate{}, fmt.Errorf("skill %q: %w", d.Type, err)
	}
	t := ports.SkillTemplate{
		Type:          d.Type,
		Description:   d.Description,
		Composition:   comp,
		DefaultParams: domain.Params(d.Params).Clone(),
		Cost:          d.Cost,
	}
	if d.Behavior == "" {
		return t, nil
	}

	l.mu.RLock()
	factory, ok := l.behaviors[d.Behavior]
	l.mu.RUnlock()
	if !ok {
		return ports.SkillTemplate{}, fmt.Errorf("skill %q: unknown behavior %q", d.Type, d.Behavior)
	}
	t.New, err = factory(d.Options)
	if err != nil {
		return ports.SkillTemplate{}, fmt.Errorf("skill %q: %w", d.Type, err)
	}
	return t, nil
}
