package param

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// List is an ordered parameter list. Names are unique and DeclOrder is
// strictly increasing.
type List []Parameter

// Validate checks the list invariants
func (l List) Validate() error {
	seen := make(map[string]bool, len(l))
	for i, p := range l {
		if p.Name == "" {
			return fmt.Errorf("parameter %d has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter name %q", p.Name)
		}
		seen[p.Name] = true
		if i > 0 && p.DeclOrder <= l[i-1].DeclOrder {
			return fmt.Errorf("parameter %q: declOrder %d not after %d", p.Name, p.DeclOrder, l[i-1].DeclOrder)
		}
	}
	return nil
}

// Names returns the parameter names in order
func (l List) Names() []string {
	out := make([]string, len(l))
	for i, p := range l {
		out[i] = p.Name
	}
	return out
}

// First returns the boundary parameter, the one with the lowest declOrder
func (l List) First() (Parameter, bool) {
	if len(l) == 0 {
		return Parameter{}, false
	}
	return l[0], true
}

// Clone returns a deep copy
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	for i, p := range l {
		if p.Choices != nil {
			p.Choices = append([]string(nil), p.Choices...)
		}
		out[i] = p
	}
	return out
}

// Union concatenates lists, keeping the first entry for a repeated name
func Union(lists ...List) List {
	seen := make(map[string]bool)
	var out List
	for _, l := range lists {
		for _, p := range l {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			out = append(out, p)
		}
	}
	return out
}

type listFile struct {
	Parameters List `yaml:"parameters"`
}

// LoadList reads a YAML parameter list. Missing decl_order values are
// assigned from file order.
func LoadList(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameter list: %w", err)
	}
	var f listFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing parameter list %s: %w", path, err)
	}
	if err := requireShape(data); err != nil {
		return nil, fmt.Errorf("parameter list %s: %w", path, err)
	}
	ordered := true
	for i := 1; i < len(f.Parameters); i++ {
		if f.Parameters[i].DeclOrder <= f.Parameters[i-1].DeclOrder {
			ordered = false
			break
		}
	}
	if !ordered {
		for i := range f.Parameters {
			f.Parameters[i].DeclOrder = i
		}
	}
	if err := f.Parameters.Validate(); err != nil {
		return nil, fmt.Errorf("parameter list %s: %w", path, err)
	}
	return f.Parameters, nil
}

// requireShape rejects entries without an explicit type or access; their
// zero values would read as Int32 and ReadOnly
func requireShape(data []byte) error {
	var raw struct {
		Parameters []map[string]interface{} `yaml:"parameters"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	for i, entry := range raw.Parameters {
		for _, key := range []string{"type", "access"} {
			if _, ok := entry[key]; !ok {
				return fmt.Errorf("parameter %d (%v) has no %s", i, entry["name"], key)
			}
		}
	}
	return nil
}

// SaveList writes a YAML parameter list
func SaveList(path string, l List) error {
	data, err := yaml.Marshal(listFile{Parameters: l})
	if err != nil {
		return fmt.Errorf("marshaling parameter list: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing parameter list: %w", err)
	}
	return nil
}
