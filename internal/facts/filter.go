package facts

// FilterTablesByModules returns a new Tables object containing only rows
// that belong to the given modules.
func FilterTablesByModules(tables Tables, modules map[string]bool) Tables {
	if len(modules) == 0 {
		return emptyTables()
	}
	out := emptyTables()

	out.Modules = filterRows(tables.Modules, modules, func(r ModuleRow) string { return r.Name })
	out.Parameters = filterRows(tables.Parameters, modules, func(r ParameterRow) string { return r.Module })
	out.Declares = filterRows(tables.Declares, modules, func(r DeclareRow) string { return r.Module })
	out.Boundaries = filterRows(tables.Boundaries, modules, func(r BoundaryRow) string { return r.Module })
	out.Renames = filterRows(tables.Renames, modules, func(r RenameRow) string { return r.Module })
	out.Diagnostics = filterRows(tables.Diagnostics, modules, func(r DiagnosticRow) string { return r.Module })

	return out
}

// FilterDeltaByModules filters both sides of a delta
func FilterDeltaByModules(delta Delta, modules map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByModules(delta.Added, modules),
		Removed: FilterTablesByModules(delta.Removed, modules),
	}
}

func filterRows[T any](rows []T, keep map[string]bool, module func(T) string) []T {
	out := []T{}
	for _, r := range rows {
		if keep[module(r)] {
			out = append(out, r)
		}
	}
	return out
}
