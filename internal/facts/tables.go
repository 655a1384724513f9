package facts

import (
	"github.com/robert-at-pretension-io/paramgen/internal/diag"
	"github.com/robert-at-pretension-io/paramgen/internal/param"
)

// Tables is the relational view of a batch run.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Modules     []ModuleRow     `json:"modules"`
	Parameters  []ParameterRow  `json:"parameters"`
	Declares    []DeclareRow    `json:"declares"`
	Boundaries  []BoundaryRow   `json:"boundaries"`
	Renames     []RenameRow     `json:"renames"`
	Diagnostics []DiagnosticRow `json:"diagnostics"`
}

type ModuleRow struct {
	Name   string `json:"name"`
	Header string `json:"header"`
	Impl   string `json:"impl"`
	Class  string `json:"class"`
	Parent string `json:"parent"`
	Base   string `json:"base"`
	Status string `json:"status"`
}

type ParameterRow struct {
	Module      string `json:"module"`
	Name        string `json:"name"`
	ExternalKey string `json:"external_key"`
	Type        string `json:"type"`
	Access      string `json:"access"`
	Label       string `json:"label"`
	Group       string `json:"group"`
	DeclOrder   int    `json:"decl_order"`
}

// DeclareRow marks a parameter a module declares beyond its base
type DeclareRow struct {
	Module string `json:"module"`
	Name   string `json:"name"`
}

type BoundaryRow struct {
	Module   string `json:"module"`
	Constant string `json:"constant"`
	First    string `json:"first"`
}

type RenameRow struct {
	Module    string `json:"module"`
	Legacy    string `json:"legacy"`
	Canonical string `json:"canonical"`
}

type DiagnosticRow struct {
	Module   string `json:"module"`
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Name     string `json:"name"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
}

// Module is everything the tables record about one processed module
type Module struct {
	Name        string
	HeaderPath  string
	ImplPath    string
	Class       string
	Parent      string
	Base        string
	Status      string
	Registry    string
	Params      param.List
	Minimal     param.List
	Renames     param.RenameTable
	Diagnostics diag.List
}

// BuildTables flattens module results into relations. Rows follow module
// order, then declaration order.
func BuildTables(modules []Module) Tables {
	tables := emptyTables()

	for _, m := range modules {
		tables.Modules = append(tables.Modules, ModuleRow{
			Name:   m.Name,
			Header: m.HeaderPath,
			Impl:   m.ImplPath,
			Class:  m.Class,
			Parent: m.Parent,
			Base:   m.Base,
			Status: m.Status,
		})

		for _, p := range m.Params {
			tables.Parameters = append(tables.Parameters, ParameterRow{
				Module:      m.Name,
				Name:        p.Name,
				ExternalKey: p.ExternalKey,
				Type:        p.Type.String(),
				Access:      p.Access.String(),
				Label:       p.AccessLabel(),
				Group:       p.Group,
				DeclOrder:   p.DeclOrder,
			})
		}

		for _, p := range m.Minimal {
			tables.Declares = append(tables.Declares, DeclareRow{Module: m.Name, Name: p.Name})
		}

		if first, ok := m.Params.First(); ok && m.Registry != "" {
			tables.Boundaries = append(tables.Boundaries, BoundaryRow{
				Module:   m.Name,
				Constant: param.BoundaryConstant(m.Registry),
				First:    first.Name,
			})
		}

		for _, r := range m.Renames {
			tables.Renames = append(tables.Renames, RenameRow{
				Module:    m.Name,
				Legacy:    r.Legacy,
				Canonical: r.Canonical,
			})
		}

		for _, d := range m.Diagnostics {
			tables.Diagnostics = append(tables.Diagnostics, DiagnosticRow{
				Module:   m.Name,
				Kind:     string(d.Kind),
				Severity: string(d.Severity),
				Name:     d.Name,
				File:     d.File,
				Line:     d.Line,
				Message:  d.Message,
			})
		}
	}

	return tables
}
