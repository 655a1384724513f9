package param

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RenameEntry folds a legacy spelling into its canonical name
type RenameEntry struct {
	Legacy    string `json:"legacy" yaml:"legacy"`
	Canonical string `json:"canonical" yaml:"canonical"`
}

// RenameTable is an ordered set of rename entries
type RenameTable []RenameEntry

// Canonical follows renames until a name with no further entry is found.
// Cycles stop at the first repeated name.
func (t RenameTable) Canonical(name string) string {
	if len(t) == 0 {
		return name
	}
	index := make(map[string]string, len(t))
	for _, e := range t {
		index[e.Legacy] = e.Canonical
	}
	seen := map[string]bool{name: true}
	for {
		next, ok := index[name]
		if !ok || seen[next] {
			return name
		}
		seen[next] = true
		name = next
	}
}

type renameFile struct {
	Renames RenameTable `yaml:"renames"`
}

// LoadRenames reads a YAML rename table
func LoadRenames(path string) (RenameTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rename table: %w", err)
	}
	var f renameFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rename table %s: %w", path, err)
	}
	for i, e := range f.Renames {
		if e.Legacy == "" || e.Canonical == "" {
			return nil, fmt.Errorf("rename table %s: entry %d needs legacy and canonical", path, i)
		}
	}
	return f.Renames, nil
}
