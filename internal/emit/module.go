package emit

import (
	"regexp"
	"strings"

	"github.com/robert-at-pretension-io/paramgen/internal/diag"
	"github.com/robert-at-pretension-io/paramgen/internal/param"
)

var (
	includeLinePattern    = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*include\b`)
	stringDefinePattern   = regexp.MustCompile(`^[ \t]*#[ \t]*define[ \t]+(\w+)String[ \t]+"`)
	handleMemberPattern   = regexp.MustCompile(`^[ \t]*int[ \t]+(\w+)[ \t]*;`)
	boundaryDefinePattern = regexp.MustCompile(`(?m)^([ \t]*#[ \t]*define[ \t]+FIRST_\w*_PARAM\w*)[ \t]+\S+`)
	accessSectionPattern  = regexp.MustCompile(`(?m)^[ \t]*(protected|private)[ \t]*:[^\n]*\n?`)
)

// ModuleHeader describes how a legacy header is regenerated around the
// injected registry
type ModuleHeader struct {
	// Module labels diagnostics
	Module string
	// File labels diagnostics
	File string
	// Class is the driver class declared in the header
	Class string
	// Registry is the registry class the driver receives
	Registry string
	// Indirection is the name of the registry member
	Indirection string
	// Accessor is "->" for a pointer member and "." for a reference
	// member; it must match the rewrite of the implementation
	Accessor string
}

func (h ModuleHeader) indirection() string {
	if h.Indirection == "" {
		return "paramSet"
	}
	return h.Indirection
}

func (h ModuleHeader) accessor() string {
	if h.Accessor == "" {
		return "->"
	}
	return h.Accessor
}

// declaration is the type and name used for both the member and the
// constructor parameter
func (h ModuleHeader) declaration() string {
	if h.accessor() == "." {
		return h.Registry + "& " + h.indirection()
	}
	return h.Registry + "* " + h.indirection()
}

// ModuleSource is a migrated header and implementation pair
type ModuleSource struct {
	Header string
	Impl   string
}

// Module regenerates the driver header so it holds a single registry pointer
// instead of per-parameter handles and pairs it with the already rewritten
// implementation. Scaffolding that cannot be located is reported as a
// warning and left as it was.
func Module(h ModuleHeader, header string, list param.List, rewrittenImpl string) (ModuleSource, diag.List) {
	var diags diag.List
	warn := func(format string, args ...interface{}) {
		diags = append(diags, diag.Warnf(diag.PossibleMissedReference, h.Module, h.Class, -1, format, args...).At(h.File, 0))
	}
	names := make(map[string]bool, len(list))
	for _, p := range list {
		names[p.Name] = true
	}
	ind := h.indirection()

	// drop per-parameter string macros and handle members
	lines := strings.SplitAfter(header, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if m := stringDefinePattern.FindStringSubmatch(l); m != nil && names[m[1]] {
			continue
		}
		if m := handleMemberPattern.FindStringSubmatch(l); m != nil && names[m[1]] {
			continue
		}
		kept = append(kept, l)
	}
	text := strings.Join(kept, "")

	text = boundaryDefinePattern.ReplaceAllString(text, "${1} "+ind+h.accessor()+param.BoundaryConstant(h.Registry))

	include := "#include \"" + h.Registry + ".h\"\n"
	if loc := includeLinePattern.FindStringIndex(text); loc != nil {
		text = text[:loc[0]] + include + text[loc[0]:]
	} else {
		text = include + text
	}

	open, end, ok := classBody(text, h.Class)
	if !ok {
		warn("class %s not found", h.Class)
		return ModuleSource{Header: text, Impl: rewrittenImpl}, diags
	}
	body, threaded := threadDeclarations(text[open:end], h.Class, h.declaration())
	if threaded == 0 {
		warn("constructor declaration of %s not found", h.Class)
	}
	body = placeMember(body, indentUnit+h.declaration()+";\n")
	text = text[:open] + body + text[end:]

	return ModuleSource{Header: text, Impl: rewrittenImpl}, diags
}

// classBody returns the span between the braces of the class definition
func classBody(text, class string) (int, int, bool) {
	head := regexp.MustCompile(`\b(?:class|struct)[ \t]+(?:\w+[ \t]+)*` + regexp.QuoteMeta(class) + `\b[^;{]*\{`).FindStringIndex(text)
	if head == nil {
		return 0, 0, false
	}
	depth := 1
	for i := head[1]; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return head[1], i, true
			}
		}
	}
	return 0, 0, false
}

// depthAt is the brace nesting of pos relative to the start of body
func depthAt(body string, pos int) int {
	return strings.Count(body[:pos], "{") - strings.Count(body[:pos], "}")
}

// threadDeclarations inserts the registry as the first parameter of every
// constructor declared directly in the class body
func threadDeclarations(body, class, decl string) (string, int) {
	ctor := regexp.MustCompile(`(?:^|[^\w~:.>])` + regexp.QuoteMeta(class) + `[ \t]*\(([ \t]*\))?`)
	var b strings.Builder
	last, threaded := 0, 0
	for _, loc := range ctor.FindAllStringSubmatchIndex(body, -1) {
		if depthAt(body, loc[0]) != 0 {
			continue
		}
		open := loc[0] + strings.IndexByte(body[loc[0]:loc[1]], '(') + 1
		insert := decl + ", "
		if loc[2] >= 0 {
			insert = decl
		}
		b.WriteString(body[last:open])
		b.WriteString(insert)
		last = open
		threaded++
	}
	b.WriteString(body[last:])
	return b.String(), threaded
}

// placeMember puts the member at the top of the class's first protected
// section, opens one before its first private section, or appends one
func placeMember(body, member string) string {
	for _, loc := range accessSectionPattern.FindAllStringSubmatchIndex(body, -1) {
		if depthAt(body, loc[0]) != 0 {
			continue
		}
		if body[loc[2]:loc[3]] == "protected" {
			return body[:loc[1]] + member + body[loc[1]:]
		}
		return body[:loc[0]] + "protected:\n" + member + body[loc[0]:]
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body + "protected:\n" + member
}
