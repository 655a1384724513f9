package tree

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/robert-at-pretension-io/paramgen/internal/param"
)

// Skeleton is an externally supplied UI layout: named groups listing
// parameter names, plus per-parameter widget hints
type Skeleton struct {
	DefaultGroup string          `yaml:"default_group,omitempty"`
	Groups       []SkeletonGroup `yaml:"groups,omitempty"`
	Hints        map[string]Hint `yaml:"hints,omitempty"`
}

// SkeletonGroup is one group of the layout, possibly nested
type SkeletonGroup struct {
	Name       string          `yaml:"name"`
	Parameters []string        `yaml:"parameters,omitempty"`
	Groups     []SkeletonGroup `yaml:"groups,omitempty"`
}

// Hint carries widget context that source declarations cannot express
type Hint struct {
	Flag      bool     `yaml:"flag,omitempty"`
	Choices   []string `yaml:"choices,omitempty"`
	Momentary bool     `yaml:"momentary,omitempty"`
	Progress  bool     `yaml:"progress,omitempty"`
}

// LoadSkeleton reads a YAML skeleton file
func LoadSkeleton(path string) (*Skeleton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading skeleton: %w", err)
	}
	var s Skeleton
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing skeleton %s: %w", path, err)
	}
	if err := s.check(s.Groups); err != nil {
		return nil, fmt.Errorf("skeleton %s: %w", path, err)
	}
	return &s, nil
}

func (s *Skeleton) check(groups []SkeletonGroup) error {
	for _, g := range groups {
		if g.Name == "" {
			return fmt.Errorf("group without a name")
		}
		if err := s.check(g.Groups); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns a copy of the list with the skeleton's hints set. A nil
// skeleton returns the list unchanged.
func (s *Skeleton) Apply(list param.List) param.List {
	out := list.Clone()
	if s == nil || len(s.Hints) == 0 {
		return out
	}
	for i, p := range out {
		h, ok := s.Hints[p.Name]
		if !ok {
			continue
		}
		p.Flag = p.Flag || h.Flag
		p.Momentary = p.Momentary || h.Momentary
		p.Progress = p.Progress || h.Progress
		if len(h.Choices) > 0 {
			p.Choices = append([]string(nil), h.Choices...)
		}
		out[i] = p
	}
	return out
}

// placements maps each listed parameter name to the path of its group.
// The first listing wins.
func (s *Skeleton) placements() map[string][]string {
	out := make(map[string][]string)
	if s == nil {
		return out
	}
	var walk func(groups []SkeletonGroup, prefix []string)
	walk = func(groups []SkeletonGroup, prefix []string) {
		for _, g := range groups {
			path := append(append([]string(nil), prefix...), g.Name)
			for _, name := range g.Parameters {
				if _, ok := out[name]; !ok {
					out[name] = path
				}
			}
			walk(g.Groups, path)
		}
	}
	walk(s.Groups, nil)
	return out
}
