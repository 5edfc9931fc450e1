package ports

import "github.com/UTNuclearRobotics/skiros2/pkg/domain"

// SkillTemplate is the library entry of a skill type.
type SkillTemplate struct {
	Type          string
	Description   string
	Composition   domain.Composition
	DefaultParams domain.Params
	Cost          float64
	// New builds a fresh behavior for one node. Nil for pure control skills.
	New func() domain.Behavior
}

// SkillResolver looks skill types up in a library.
type SkillResolver interface {
	// Resolve returns domain.ErrUnknownSkill when the type is not registered.
	Resolve(skillType string) (SkillTemplate, error)
}
