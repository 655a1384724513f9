package merge

import (
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/robert-at-pretension-io/paramgen/internal/diag"
	"github.com/robert-at-pretension-io/paramgen/internal/param"
)

// maxRenameDistance bounds the edit distance for rename suggestions
const maxRenameDistance = 2

// Result is the resolver output
type Result struct {
	// Minimal holds the candidate entries that are new relative to the base,
	// under their canonical names, keeping candidate declOrder
	Minimal param.List
	// Applied lists the rename entries that folded a candidate or base name
	Applied param.RenameTable
}

// Resolve computes the parameters a module declares beyond what its base
// already provides. A shape conflict with the base is fatal for the minimal
// list; the conflicting entry is left out of Minimal and reported.
func Resolve(module string, candidate, base param.List, renames param.RenameTable) (Result, diag.List) {
	var (
		res   Result
		diags diag.List
	)
	applied := make(map[param.RenameEntry]bool)
	fold := func(name string) string {
		canonical := renames.Canonical(name)
		if canonical != name {
			e := param.RenameEntry{Legacy: name, Canonical: canonical}
			if !applied[e] {
				applied[e] = true
				res.Applied = append(res.Applied, e)
			}
		}
		return canonical
	}

	baseByName := make(map[string]param.Parameter, len(base))
	for _, p := range base {
		name := fold(p.Name)
		if _, ok := baseByName[name]; !ok {
			baseByName[name] = p
		}
	}

	emitted := make(map[string]bool, len(candidate))
	for _, p := range candidate {
		name := fold(p.Name)
		if b, ok := baseByName[name]; ok {
			if !p.SameShape(b) {
				diags = append(diags, diag.Errorf(diag.InheritedParameterMismatch, module, name, p.DeclOrder,
					"declared as %s %s but inherited as %s %s", p.Type, p.Access, b.Type, b.Access))
			}
			continue
		}
		if emitted[name] {
			diags = append(diags, diag.Errorf(diag.DuplicateParameterName, module, name, p.DeclOrder,
				"%s declared as %s names an entry already in the list", name, p.Name))
			continue
		}
		emitted[name] = true
		p.Name = name
		res.Minimal = append(res.Minimal, p)
	}

	diags = append(diags, suggestRenames(module, res.Minimal, baseByName)...)
	return res, diags
}

// suggestRenames warns about new names that sit within a couple of edits
// of an inherited name, which usually means a missing rename entry
func suggestRenames(module string, minimal param.List, base map[string]param.Parameter) diag.List {
	if len(base) == 0 {
		return nil
	}
	names := make([]string, 0, len(base))
	for name := range base {
		names = append(names, name)
	}
	sort.Strings(names)

	var out diag.List
	for _, p := range minimal {
		best, bestDist := "", maxRenameDistance+1
		for _, name := range names {
			d := levenshtein.ComputeDistance(p.Name, name)
			if d < bestDist {
				best, bestDist = name, d
			}
		}
		if best != "" && bestDist <= maxRenameDistance && len(p.Name) > maxRenameDistance {
			out = append(out, diag.Warnf(diag.SuspectedRename, module, p.Name, p.DeclOrder,
				"close to inherited parameter %s; add a rename entry if they are the same", best))
		}
	}
	return out
}
