package domain

// SkillSpec requests one skill instance when a task is built.
// Children are optional and turn the instance into a composite.
type SkillSpec struct {
	Type     string      `json:"type" yaml:"type" mapstructure:"type"`
	Label    string      `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Params   Params      `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
	Children []SkillSpec `json:"children,omitempty" yaml:"children,omitempty" mapstructure:"children"`
}
