package skill

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition declares a skill type in a library file.
type Definition struct {
	Type        string         `yaml:"type"`
	Description string         `yaml:"description,omitempty"`
	Composition string         `yaml:"composition,omitempty"`
	Cost        float64        `yaml:"cost,omitempty"`
	Params      map[string]any `yaml:"params,omitempty"`
	Behavior    string         `yaml:"behavior,omitempty"`
	Options     map[string]any `yaml:"options,omitempty"`
}

type libraryFile struct {
	Skills []Definition `yaml:"skills"`
}

// Parse reads the definitions of a library document.
func Parse(data []byte) ([]Definition, error) {
	var f libraryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse skill library: %w", err)
	}
	seen := make(map[string]bool, len(f.Skills))
	for i, d := range f.Skills {
		if d.Type == "" {
			return nil, fmt.Errorf("skill library entry %d has no type", i)
		}
		if seen[d.Type] {
			return nil, fmt.Errorf("skill library declares %q twice", d.Type)
		}
		seen[d.Type] = true
	}
	return f.Skills, nil
}

// LoadFile reads the definitions of a library file.
func LoadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill library: %w", err)
	}
	defs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// LoadFiles reads every file in order. Later files override earlier ones
// when they declare the same type.
func LoadFiles(paths ...string) ([]Definition, error) {
	var all []Definition
	index := make(map[string]int)
	for _, p := range paths {
		defs, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		for _, d := range defs {
			if i, ok := index[d.Type]; ok {
				all[i] = d
				continue
			}
			index[d.Type] = len(all)
			all = append(all, d)
		}
	}
	return all, nil
}
