package task

import (
	"fmt"
	"os"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"gopkg.in/yaml.v3"
)

type sequenceFile struct {
	Skills []domain.SkillSpec `yaml:"skills"`
}

// ParseSequence reads a skill sequence document:
//
//	skills:
//	  - type: Move
//	    name: m1
//	    params: {target: table}
func ParseSequence(data []byte) ([]domain.SkillSpec, error) {
	var f sequenceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse skill sequence: %w", err)
	}
	if len(f.Skills) == 0 {
		return nil, fmt.Errorf("skill sequence is empty")
	}
	return f.Skills, nil
}

// LoadSequence reads a skill sequence file.
func LoadSequence(path string) ([]domain.SkillSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill sequence: %w", err)
	}
	return ParseSequence(data)
}
