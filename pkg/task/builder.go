// Package task turns skill sequences into task trees.
package task

import (
	"fmt"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/ports"
)

// RootType is the type of the node owning every task.
const RootType = "Root"

// Builder resolves skill sequences against a library.
type Builder struct {
	resolver ports.SkillResolver
}

// NewBuilder returns a builder using r.
func NewBuilder(r ports.SkillResolver) *Builder {
	return &Builder{resolver: r}
}

// Build creates a tree whose root runs the sequence in order. Any
// resolution problem is returned as a *domain.ResolutionError and no tree
// is produced.
func (b *Builder) Build(seq []domain.SkillSpec) (*domain.TaskTree, error) {
	root := &domain.Node{
		Type:        RootType,
		Label:       "root",
		Params:      domain.Params{},
		Composition: domain.Sequential,
	}
	for _, spec := range seq {
		n, err := b.node(spec)
		if err != nil {
			return nil, err
		}
		root.AddChild(n)
	}
	root.Renumber()

	seen := make(map[string]bool)
	var dup *domain.Node
	root.Walk(func(n *domain.Node) bool {
		if dup != nil {
			return false
		}
		if n.Label == "" {
			n.Label = fmt.Sprintf("%s_%d", n.Type, n.ID)
		}
		if seen[n.Label] {
			dup = n
			return false
		}
		seen[n.Label] = true
		return true
	})
	if dup != nil {
		return nil, &domain.ResolutionError{Skill: dup.Type, Label: dup.Label, Err: domain.ErrDuplicateLabel}
	}
	return domain.NewTaskTree(root), nil
}

func (b *Builder) node(spec domain.SkillSpec) (*domain.Node, error) {
	tmpl, err := b.resolver.Resolve(spec.Type)
	if err != nil {
		return nil, &domain.ResolutionError{Skill: spec.Type, Label: spec.Label, Err: err}
	}
	for k := range spec.Params {
		if _, ok := tmpl.DefaultParams[k]; !ok {
			return nil, &domain.ResolutionError{Skill: spec.Type, Label: spec.Label, Param: k, Err: domain.ErrUnknownParam}
		}
	}

	n := &domain.Node{
		Type:        spec.Type,
		Label:       spec.Label,
		Params:      tmpl.DefaultParams.Merge(spec.Params),
		Composition: tmpl.Composition,
		Cost:        tmpl.Cost,
	}
	if tmpl.New != nil {
		n.Behavior = tmpl.New()
	}
	for _, c := range spec.Children {
		child, err := b.node(c)
		if err != nil {
			return nil, err
		}
		n.AddChild(child)
	}
	return n, nil
}
