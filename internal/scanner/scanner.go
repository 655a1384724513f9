package scanner

import (
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/paramgen/internal/diag"
	"github.com/robert-at-pretension-io/paramgen/internal/param"
)

// Idiom names the declaration style a parameter was found in
type Idiom string

const (
	IdiomMacroMember  Idiom = "macro+member"
	IdiomRegistration Idiom = "registration"
	IdiomInline       Idiom = "inline"
)

// Source is a header and its optional implementation
type Source struct {
	HeaderPath string
	Header     string
	ImplPath   string
	Impl       string
}

// Boundary is where the first-parameter macro sat in the source
type Boundary struct {
	Macro  string `json:"macro"`
	Target string `json:"target"`
	File   string `json:"file"`
	Line   int    `json:"line"`
}

// Result is the scanner output for one module
type Result struct {
	Params   param.List
	Class    string
	Parent   string
	Boundary *Boundary
	// Origins records which idiom produced each parameter. Emitters do not
	// read it.
	Origins map[string]Idiom
}

type define struct {
	key  string
	file string
	line int
}

type member struct {
	name     string
	typeName string
	label    string
	group    string
	file     string
	line     int
}

type registration struct {
	name     string
	key      string
	viaMacro bool
	typ      param.TypeTag
	label    string
	group    string
	file     string
	line     int
}

type text struct {
	path     string
	body     string
	lines    lineIndex
	comments []span
	groups   []groupMarker
}

type groupMarker struct {
	offset int
	name   string
}

func newText(path, body string) *text {
	t := &text{
		path:     path,
		body:     body,
		lines:    newLineIndex(body),
		comments: commentSpans(body),
	}
	for _, m := range groupPattern.FindAllStringSubmatchIndex(body, -1) {
		t.groups = append(t.groups, groupMarker{offset: m[0], name: strings.TrimSpace(body[m[2]:m[3]])})
	}
	return t
}

// groupAt returns the nearest group marker before off
func (t *text) groupAt(off int) string {
	i := sort.Search(len(t.groups), func(i int) bool { return t.groups[i].offset >= off })
	if i == 0 {
		return ""
	}
	return t.groups[i-1].name
}

type scan struct {
	module  string
	texts   []*text
	defines map[string]define
	members []member
	regs    []registration
	diags   diag.List
	result  Result
}

// Scan extracts the ordered parameter list from a header and its optional
// implementation. A non-empty fatal diagnostic list means the module has no
// usable parameter list.
func Scan(module string, src Source) (Result, diag.List) {
	s := &scan{
		module:  module,
		defines: make(map[string]define),
		result:  Result{Origins: make(map[string]Idiom)},
	}
	s.texts = append(s.texts, newText(src.HeaderPath, src.Header))
	if src.Impl != "" {
		s.texts = append(s.texts, newText(src.ImplPath, src.Impl))
	}

	for _, t := range s.texts {
		s.collectDefines(t)
	}
	for i, t := range s.texts {
		s.collectClass(t)
		if i == 0 {
			s.collectMembers(t)
		}
		s.collectRegistrations(t)
	}
	s.reconcile()

	if s.diags.HasFatal() {
		return Result{Class: s.result.Class, Parent: s.result.Parent, Origins: map[string]Idiom{}}, s.diags
	}
	return s.result, s.diags
}

func (s *scan) errorf(kind diag.Kind, name string, order int, file string, line int, format string, args ...interface{}) {
	s.diags = append(s.diags, diag.Errorf(kind, s.module, name, order, format, args...).At(file, line))
}

func (s *scan) collectDefines(t *text) {
	for _, m := range stringMacroPattern.FindAllStringSubmatchIndex(t.body, -1) {
		if inSpans(t.comments, m[0]) {
			continue
		}
		name := t.body[m[2]:m[3]]
		key, _ := unquote(`"` + t.body[m[4]:m[5]] + `"`)
		if _, ok := s.defines[name]; ok {
			continue
		}
		s.defines[name] = define{key: key, file: t.path, line: t.lines.line(m[0])}
	}
	if s.result.Boundary != nil {
		return
	}
	for _, m := range boundaryPattern.FindAllStringSubmatchIndex(t.body, -1) {
		if inSpans(t.comments, m[0]) {
			continue
		}
		s.result.Boundary = &Boundary{
			Macro:  t.body[m[2]:m[3]],
			Target: t.body[m[4]:m[5]],
			File:   t.path,
			Line:   t.lines.line(m[0]),
		}
		return
	}
}

func (s *scan) collectClass(t *text) {
	if s.result.Class != "" {
		return
	}
	for _, m := range classPattern.FindAllStringSubmatchIndex(t.body, -1) {
		if inSpans(t.comments, m[0]) {
			continue
		}
		s.result.Class = t.body[m[2]:m[3]]
		if m[4] >= 0 {
			s.result.Parent = t.body[m[4]:m[5]]
		}
		return
	}
}

func (s *scan) collectMembers(t *text) {
	for _, m := range memberPattern.FindAllStringSubmatchIndex(t.body, -1) {
		if inSpans(t.comments, m[0]) {
			continue
		}
		mem := member{
			name:  t.body[m[2]:m[3]],
			group: t.groupAt(m[0]),
			file:  t.path,
			line:  t.lines.line(m[0]),
		}
		if m[4] >= 0 {
			mem.typeName = t.body[m[4]:m[5]]
		}
		if m[6] >= 0 {
			mem.label = t.body[m[6]:m[7]]
		}
		s.members = append(s.members, mem)
	}
}

func (s *scan) collectRegistrations(t *text) {
	for _, m := range registrationPattern.FindAllStringSubmatchIndex(t.body, -1) {
		if inSpans(t.comments, m[0]) {
			continue
		}
		fn := t.body[m[2]:m[3]]
		line := t.lines.line(m[0])
		args := splitArgs(t.body[m[4]:m[5]])
		loose := fn == "add"
		if len(args) < 3 {
			if !loose {
				s.errorf(diag.MalformedDeclaration, "", -1, t.path, line,
					"%s call needs a key, a type and a handle, got %d argument(s)", fn, len(args))
			}
			continue
		}
		args = args[len(args)-3:]

		hm := handlePattern.FindStringSubmatch(args[2])
		if hm == nil {
			if !loose {
				s.errorf(diag.MalformedDeclaration, "", -1, t.path, line,
					"%s handle %q is not an address-of expression", fn, args[2])
			}
			continue
		}
		reg := registration{name: hm[1], file: t.path, line: line, group: t.groupAt(m[0])}

		typ, err := param.ParseTypeTag(args[1])
		if err != nil {
			if loose && !strings.HasPrefix(args[1], "asynParam") {
				continue
			}
			s.errorf(diag.MalformedDeclaration, reg.name, -1, t.path, line, "%v", err)
			continue
		}
		reg.typ = typ

		switch {
		case strings.HasPrefix(args[0], `"`):
			key, ok := unquote(args[0])
			if !ok {
				s.errorf(diag.MalformedDeclaration, reg.name, -1, t.path, line, "bad key literal %s", args[0])
				continue
			}
			reg.key = key
		case strings.HasSuffix(args[0], "String") && identPattern.MatchString(args[0]):
			def, ok := s.defines[strings.TrimSuffix(args[0], "String")]
			if !ok {
				s.errorf(diag.MalformedDeclaration, reg.name, -1, t.path, line, "key macro %s is not defined", args[0])
				continue
			}
			reg.key = def.key
			reg.viaMacro = true
		default:
			s.errorf(diag.MalformedDeclaration, reg.name, -1, t.path, line,
				"key %q is neither a string literal nor a <Name>String macro", args[0])
			continue
		}

		if m[6] >= 0 {
			if am := annotationPattern.FindStringSubmatch(t.body[m[6]:m[7]]); am != nil {
				reg.label = am[1]
			}
		}
		s.regs = append(s.regs, reg)
	}
}

// reconcile merges the three idioms into one ordered list. Registration
// order is authoritative.
func (s *scan) reconcile() {
	membersByName := make(map[string]member)
	for _, m := range s.members {
		if _, ok := membersByName[m.name]; !ok {
			membersByName[m.name] = m
		}
	}

	registered := make(map[string]registration)
	var ordered []registration
	for _, r := range s.regs {
		if prev, ok := registered[r.name]; ok {
			if prev.key != r.key || prev.typ != r.typ {
				s.errorf(diag.DuplicateParameterName, r.name, len(ordered), r.file, r.line,
					"registered as %q %s and again as %q %s", prev.key, prev.typ.AsynName(), r.key, r.typ.AsynName())
			}
			continue
		}
		registered[r.name] = r
		ordered = append(ordered, r)
	}

	for _, m := range s.members {
		if _, ok := registered[m.name]; ok {
			continue
		}
		_, hasMacro := s.defines[m.name]
		if hasMacro || m.label != "" {
			s.errorf(diag.UnregisteredParameter, m.name, -1, m.file, m.line,
				"handle member %s has no registration call", m.name)
		}
	}

	params := make(param.List, 0, len(ordered))
	explicit := make([]bool, 0, len(ordered))
	for _, r := range ordered {
		p := param.Parameter{
			Name:        r.name,
			ExternalKey: r.key,
			Type:        r.typ,
			Group:       r.group,
		}
		mem, hasMember := membersByName[r.name]
		if hasMember && mem.typeName != "" && mem.typeName != r.typ.AsynName() {
			s.errorf(diag.MalformedDeclaration, r.name, len(params), mem.file, mem.line,
				"member annotated %s but registered as %s", mem.typeName, r.typ.AsynName())
		}
		if p.Group == "" && hasMember {
			p.Group = mem.group
		}
		label := r.label
		if label == "" && hasMember {
			label = mem.label
		}

		switch {
		case label != "":
			s.result.Origins[p.Name] = IdiomInline
		case r.viaMacro && hasMember:
			s.result.Origins[p.Name] = IdiomMacroMember
		default:
			s.result.Origins[p.Name] = IdiomRegistration
		}

		switch label {
		case param.LabelReadback:
			p.Access = param.ReadOnly
			p.ExternalKey = strings.TrimSuffix(p.ExternalKey, param.ReadbackSuffix)
		case param.LabelAction:
			p.Access = param.WriteOnly
			p.Momentary = true
		case param.LabelSetting:
			p.Access = param.ReadWrite
		}
		params = append(params, p)
		explicit = append(explicit, label != "")
	}

	params = foldReadbacks(params, explicit)
	kept := make(map[string]Idiom, len(params))
	for _, p := range params {
		kept[p.Name] = s.result.Origins[p.Name]
	}
	s.result.Origins = kept
	for i := range params {
		params[i].DeclOrder = i
	}

	if len(params) == 0 && !s.diags.HasFatal() {
		file := ""
		if len(s.texts) > 0 {
			file = s.texts[0].path
		}
		s.errorf(diag.MalformedDeclaration, "", -1, file, 0, "no parameter declarations found")
	}
	s.result.Params = params
}

// foldReadbacks infers access modes from the _RBV key convention for
// parameters that carried no explicit label
func foldReadbacks(params param.List, explicit []bool) param.List {
	writeKeys := make(map[string]int)
	for i, p := range params {
		if explicit[i] {
			continue
		}
		params[i].Access = param.WriteOnly
		if !strings.HasSuffix(p.ExternalKey, param.ReadbackSuffix) {
			writeKeys[p.ExternalKey] = i
		}
	}

	drop := make(map[int]bool)
	for i, p := range params {
		if explicit[i] || !strings.HasSuffix(p.ExternalKey, param.ReadbackSuffix) {
			continue
		}
		base := strings.TrimSuffix(p.ExternalKey, param.ReadbackSuffix)
		if w, ok := writeKeys[base]; ok && params[w].Type == p.Type {
			params[w].Access = param.ReadWrite
			drop[i] = true
			continue
		}
		params[i].Access = param.ReadOnly
		params[i].ExternalKey = base
	}

	out := make(param.List, 0, len(params))
	for i, p := range params {
		if !drop[i] {
			out = append(out, p)
		}
	}
	return out
}
