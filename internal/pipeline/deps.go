package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/paramgen/internal/config"
)

// baseLevels orders modules so that a base is always in an earlier level
// than the modules inheriting from it. Modules within a level keep their
// input order. Modules on a base cycle, or inheriting from one, are
// returned separately.
func baseLevels(mods []config.ModuleEntry) (levels [][]config.ModuleEntry, cyclic []config.ModuleEntry) {
	byName := make(map[string]config.ModuleEntry, len(mods))
	for _, m := range mods {
		byName[m.Name] = m
	}

	depth := make(map[string]int, len(mods))
	const visiting = -1
	var resolve func(name string) (int, bool)
	resolve = func(name string) (int, bool) {
		if d, ok := depth[name]; ok {
			return d, d != visiting
		}
		m, ok := byName[name]
		if !ok {
			return -1, true
		}
		depth[name] = visiting
		d := 0
		if m.Base != "" {
			bd, ok := resolve(m.Base)
			if !ok {
				return 0, false
			}
			d = bd + 1
		}
		depth[name] = d
		return d, true
	}

	for _, m := range mods {
		d, ok := resolve(m.Name)
		if !ok {
			cyclic = append(cyclic, m)
			continue
		}
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], m)
	}
	return levels, cyclic
}

// withBases returns the named modules plus every module on their base
// chains, in input order
func withBases(mods []config.ModuleEntry, names []string) ([]config.ModuleEntry, error) {
	byName := make(map[string]config.ModuleEntry, len(mods))
	for _, m := range mods {
		byName[m.Name] = m
	}
	keep := make(map[string]bool)
	for _, name := range names {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("unknown module %q", name)
		}
		for n := name; n != "" && !keep[n]; n = byName[n].Base {
			keep[n] = true
		}
	}
	var out []config.ModuleEntry
	for _, m := range mods {
		if keep[m.Name] {
			out = append(out, m)
		}
	}
	return out, nil
}

// dependents maps each module to the modules whose base it is
func dependents(mods []config.ModuleEntry) map[string][]string {
	out := make(map[string][]string)
	for _, m := range mods {
		if m.Base != "" {
			out[m.Base] = append(out[m.Base], m.Name)
		}
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}

// impactLevels lists, level by level, the modules that inherit from root
// directly or transitively
func impactLevels(root string, deps map[string][]string) [][]string {
	visited := map[string]bool{root: true}
	frontier := []string{root}
	var levels [][]string

	for len(frontier) > 0 {
		var next []string
		for _, m := range frontier {
			for _, dep := range deps[m] {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				next = append(next, dep)
			}
		}
		if len(next) == 0 {
			break
		}
		sort.Strings(next)
		levels = append(levels, next)
		frontier = next
	}
	return levels
}

// FormatImpact renders the modules affected by a change to root
func FormatImpact(root string, mods []config.ModuleEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s\n", root)
	for i, level := range impactLevels(root, dependents(mods)) {
		fmt.Fprintf(&b, "    level %d (%d): %s\n", i+1, len(level), strings.Join(level, ", "))
	}
	return b.String()
}
