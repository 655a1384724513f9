package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a diagnostic
type Kind string

const (
	MalformedDeclaration       Kind = "MalformedDeclaration"
	DuplicateParameterName     Kind = "DuplicateParameterName"
	UnregisteredParameter      Kind = "UnregisteredParameter"
	InheritedParameterMismatch Kind = "InheritedParameterMismatch"
	PossibleMissedReference    Kind = "PossibleMissedReference"
	UnresolvedReference        Kind = "UnresolvedReference"
	InputUnavailable           Kind = "InputUnavailable"
	ContractViolation          Kind = "ContractViolation"
	PolicyViolation            Kind = "PolicyViolation"
	SuspectedRename            Kind = "SuspectedRename"
)

// Severity levels, matching the lint rule severities in the config
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Diagnostic is one reported problem. DeclOrder is -1 when no parameter
// is involved.
type Diagnostic struct {
	Kind      Kind   `json:"kind"`
	Severity  string `json:"severity"`
	Module    string `json:"module"`
	Name      string `json:"name,omitempty"`
	DeclOrder int    `json:"decl_order"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Message   string `json:"message"`
}

// Fatal reports whether the diagnostic stops the stage that raised it
func (d Diagnostic) Fatal() bool {
	return d.Severity == SeverityError
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(d.Module)
	if d.File != "" {
		b.WriteString(": ")
		b.WriteString(d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d", d.Line)
		}
	}
	fmt.Fprintf(&b, ": %s %s", d.Severity, d.Kind)
	if d.Name != "" {
		fmt.Fprintf(&b, " [%s", d.Name)
		if d.DeclOrder >= 0 {
			fmt.Fprintf(&b, " #%d", d.DeclOrder)
		}
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// Errorf builds a fatal diagnostic
func Errorf(kind Kind, module, name string, declOrder int, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Kind:      kind,
		Severity:  SeverityError,
		Module:    module,
		Name:      name,
		DeclOrder: declOrder,
		Message:   fmt.Sprintf(format, args...),
	}
}

// Warnf builds a non-fatal diagnostic
func Warnf(kind Kind, module, name string, declOrder int, format string, args ...interface{}) Diagnostic {
	d := Errorf(kind, module, name, declOrder, format, args...)
	d.Severity = SeverityWarning
	return d
}

// At attaches a source position
func (d Diagnostic) At(file string, line int) Diagnostic {
	d.File = file
	d.Line = line
	return d
}

// List is an ordered collection of diagnostics
type List []Diagnostic

// HasFatal reports whether any entry is fatal
func (l List) HasFatal() bool {
	for _, d := range l {
		if d.Fatal() {
			return true
		}
	}
	return false
}

// Fatal returns the fatal entries
func (l List) Fatal() List {
	var out List
	for _, d := range l {
		if d.Fatal() {
			out = append(out, d)
		}
	}
	return out
}

// OfKind returns the entries of the given kind
func (l List) OfKind(kind Kind) List {
	var out List
	for _, d := range l {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Sorted orders by module, file, line and kind without changing l
func (l List) Sorted() List {
	out := append(List(nil), l...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Kind < b.Kind
	})
	return out
}

// Summary provides aggregate counts
type Summary struct {
	Total    int `json:"total"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// Summarize counts diagnostics by severity
func (l List) Summarize() Summary {
	s := Summary{Total: len(l)}
	for _, d := range l {
		switch d.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		default:
			s.Info++
		}
	}
	return s
}

// Err joins fatal entries into one Go error, or returns nil
func (l List) Err() error {
	fatal := l.Fatal()
	if len(fatal) == 0 {
		return nil
	}
	msgs := make([]string, len(fatal))
	for i, d := range fatal {
		msgs[i] = d.String()
	}
	return fmt.Errorf("%d fatal diagnostic(s):\n  %s", len(fatal), strings.Join(msgs, "\n  "))
}
