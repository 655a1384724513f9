package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Modules = diffRows(from.Modules, to.Modules, func(r ModuleRow) string {
		return key(r.Name, r.Header, r.Impl, r.Class, r.Parent, r.Base, r.Status)
	})
	out.Parameters = diffRows(from.Parameters, to.Parameters, func(r ParameterRow) string {
		return key(r.Module, r.Name, r.ExternalKey, r.Type, r.Access, r.Label, r.Group, strconv.Itoa(r.DeclOrder))
	})
	out.Declares = diffRows(from.Declares, to.Declares, func(r DeclareRow) string {
		return key(r.Module, r.Name)
	})
	out.Boundaries = diffRows(from.Boundaries, to.Boundaries, func(r BoundaryRow) string {
		return key(r.Module, r.Constant, r.First)
	})
	out.Renames = diffRows(from.Renames, to.Renames, func(r RenameRow) string {
		return key(r.Module, r.Legacy, r.Canonical)
	})
	// line numbers shift with unrelated edits, so they are not part of the key
	out.Diagnostics = diffRows(from.Diagnostics, to.Diagnostics, func(r DiagnosticRow) string {
		return key(r.Module, r.Kind, r.Severity, r.Name, r.File, r.Message)
	})

	return out
}

func emptyTables() Tables {
	return Tables{
		Modules:     []ModuleRow{},
		Parameters:  []ParameterRow{},
		Declares:    []DeclareRow{},
		Boundaries:  []BoundaryRow{},
		Renames:     []RenameRow{},
		Diagnostics: []DiagnosticRow{},
	}
}

func key(parts ...string) string {
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	b := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			b = append(b, 0x1f)
		}
		b = append(b, p...)
	}
	return string(b)
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]bool, len(from))
	for _, row := range from {
		fromSet[key(row)] = true
	}
	var diff []T
	for _, row := range to {
		if !fromSet[key(row)] {
			diff = append(diff, row)
		}
	}
	if diff == nil {
		diff = []T{}
	}
	return diff
}
