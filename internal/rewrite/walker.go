package rewrite

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/robert-at-pretension-io/paramgen/internal/diag"
	"github.com/robert-at-pretension-io/paramgen/internal/param"
)

var wordPattern = regexp.MustCompile(`[A-Za-z_]\w*`)

var registrationFuncs = map[string]bool{
	"add":           true,
	"createParam":   true,
	"registerParam": true,
}

// scopeOpeners introduce a block scope for the node and its children
var scopeOpeners = map[string]bool{
	"compound_statement": true,
	"for_statement":      true,
	"for_range_loop":     true,
	"while_statement":    true,
	"do_statement":       true,
	"if_statement":       true,
	"switch_statement":   true,
	"catch_clause":       true,
}

// declarators are nodes whose "declarator" field binds a name
var declarators = map[string]bool{
	"declaration":                    true,
	"parameter_declaration":          true,
	"optional_parameter_declaration": true,
	"field_declaration":              true,
}

type scope map[string]bool

type walker struct {
	module string
	opts   Options
	src    []byte
	params map[string]param.Parameter

	scopes       []scope
	declSites    map[uint32]bool
	fileBindings map[string]bool
	ownParams    uint32
	hasOwnParams bool
	foreign      bool
	classes      []string
	factoryStmts map[uint32]bool
	// blocks that already declare the registry for a factory site
	factoryBlocks map[uint32]bool

	edits []edit
	diags diag.List
	res   Result
}

func newWalker(module string, opts Options, src []byte, list param.List) *walker {
	w := &walker{
		module:       module,
		opts:         opts,
		src:          src,
		params:       make(map[string]param.Parameter, len(list)),
		scopes:       []scope{{}},
		declSites:    make(map[uint32]bool),
		fileBindings: make(map[string]bool),
		factoryStmts: make(map[uint32]bool),

		factoryBlocks: make(map[uint32]bool),
	}
	for _, p := range list {
		w.params[p.Name] = p
	}
	return w
}

func (w *walker) push() { w.scopes = append(w.scopes, scope{}) }
func (w *walker) pop()  { w.scopes = w.scopes[:len(w.scopes)-1] }

func (w *walker) replace(start, end uint32, text string) {
	w.edits = append(w.edits, edit{start: start, end: end, text: text, seq: len(w.edits)})
}

func (w *walker) insert(at uint32, text string) {
	w.replace(at, at, text)
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func (w *walker) warn(n *sitter.Node, name, format string, args ...interface{}) {
	order := -1
	if p, ok := w.params[name]; ok {
		order = p.DeclOrder
	}
	w.diags = append(w.diags, diag.Warnf(diag.PossibleMissedReference, w.module, name, order, format, args...).At(w.opts.File, line(n)))
}

func (w *walker) fail(n *sitter.Node, name, format string, args ...interface{}) {
	order := -1
	if p, ok := w.params[name]; ok {
		order = p.DeclOrder
	}
	w.diags = append(w.diags, diag.Errorf(diag.UnresolvedReference, w.module, name, order, format, args...).At(w.opts.File, line(n)))
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func (w *walker) visitChildren(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		w.visit(n.Child(i))
	}
}

func (w *walker) visit(n *sitter.Node) {
	if n == nil {
		return
	}
	t := n.Type()

	switch {
	case t == "ERROR":
		w.reportUnparsed(n)
		return

	case t == "string_literal", t == "raw_string_literal", t == "char_literal",
		t == "comment", t == "system_lib_string", t == "qualified_identifier",
		t == "preproc_include":
		return

	case t == "identifier":
		w.reference(n)
		return

	case t == "field_expression":
		if w.memberAccess(n) {
			return
		}

	case t == "enumerator":
		w.enumerator(n)
		return

	case t == "lambda_capture_specifier":
		w.lambdaCaptures(n)
		return

	case t == "function_definition":
		w.functionDefinition(n)
		return

	case t == "lambda_expression":
		w.push()
		if d := n.ChildByFieldName("declarator"); d != nil {
			if pl := d.ChildByFieldName("parameters"); pl != nil {
				w.ownParams, w.hasOwnParams = pl.StartByte(), true
			}
		}
		w.visitChildren(n)
		w.pop()
		return

	case t == "parameter_list":
		if w.hasOwnParams && n.StartByte() == w.ownParams {
			w.hasOwnParams = false
			w.visitChildren(n)
			return
		}
		w.push()
		w.visitChildren(n)
		w.pop()
		return

	case t == "class_specifier", t == "struct_specifier", t == "union_specifier":
		w.classSpecifier(n)
		return

	case declarators[t]:
		w.declaration(n)
		return

	case t == "for_range_loop":
		w.push()
		for i := 0; i < int(n.ChildCount()); i++ {
			if n.FieldNameForChild(i) == "declarator" {
				w.declare(n.Child(i))
			}
			w.visit(n.Child(i))
		}
		w.pop()
		return

	case scopeOpeners[t]:
		w.push()
		w.visitChildren(n)
		w.pop()
		return

	case t == "expression_statement":
		if w.removeRegistration(n) {
			return
		}

	case t == "new_expression":
		w.factorySite(n)

	case t == "preproc_def":
		w.macroDefinition(n)
		return

	case t == "preproc_function_def":
		if v := n.ChildByFieldName("value"); v != nil {
			w.scanMacroBody(v)
		}
		return
	}

	w.visitChildren(n)
}

// declaredIdentifiers returns the identifiers a declarator binds
func declaredIdentifiers(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "field_identifier":
		return []*sitter.Node{n}
	case "init_declarator", "pointer_declarator", "array_declarator",
		"function_declarator", "attributed_declarator":
		return declaredIdentifiers(n.ChildByFieldName("declarator"))
	case "reference_declarator", "parenthesized_declarator":
		if c := n.NamedChildCount(); c > 0 {
			return declaredIdentifiers(n.NamedChild(int(c) - 1))
		}
	case "structured_binding_declarator":
		var out []*sitter.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			out = append(out, declaredIdentifiers(n.NamedChild(i))...)
		}
		return out
	}
	return nil
}

func (w *walker) declare(declarator *sitter.Node) {
	for _, id := range declaredIdentifiers(declarator) {
		name := id.Content(w.src)
		w.declSites[id.StartByte()] = true
		w.scopes[len(w.scopes)-1][name] = true
		if len(w.scopes) == 1 && w.isParam(name) {
			w.fileBindings[name] = true
			w.fail(id, name, "file-scope declaration of %s collides with the migrated member", name)
		}
	}
}

func (w *walker) declaration(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == "declarator" {
			w.declare(n.Child(i))
		}
		w.visit(n.Child(i))
	}
}

func (w *walker) isParam(name string) bool {
	_, ok := w.params[name]
	return ok
}

// resolvesLocally reports whether name is bound in a block, function or
// class scope
func (w *walker) resolvesLocally(name string) bool {
	for i := len(w.scopes) - 1; i > 0; i-- {
		if w.scopes[i][name] {
			return true
		}
	}
	return false
}

func (w *walker) reference(n *sitter.Node) {
	name := n.Content(w.src)
	if !w.isParam(name) || w.declSites[n.StartByte()] {
		return
	}
	if w.resolvesLocally(name) || w.fileBindings[name] {
		return
	}
	if parent := n.Parent(); parent != nil && parent.Type() == "call_expression" &&
		sameNode(parent.ChildByFieldName("function"), n) {
		w.warn(n, name, "%s is called like a function", name)
		return
	}
	if w.foreign {
		w.warn(n, name, "%s referenced in a member function of another class", name)
		return
	}
	w.replace(n.StartByte(), n.EndByte(), w.opts.qualify(name))
	w.res.Qualified++
}

// memberAccess qualifies this->Name for a migrated handle; the member
// moves into the registry
func (w *walker) memberAccess(n *sitter.Node) bool {
	arg, field := n.ChildByFieldName("argument"), n.ChildByFieldName("field")
	if arg == nil || field == nil || arg.Type() != "this" {
		return false
	}
	name := field.Content(w.src)
	if !w.isParam(name) {
		return false
	}
	if parent := n.Parent(); parent != nil && parent.Type() == "call_expression" &&
		sameNode(parent.ChildByFieldName("function"), n) {
		w.warn(n, name, "this->%s is called like a function", name)
		return true
	}
	if w.foreign {
		w.warn(n, name, "this->%s accessed in a member function of another class", name)
		return true
	}
	w.replace(field.StartByte(), field.EndByte(), w.opts.qualify(name))
	w.res.Qualified++
	return true
}

// enumerator binds an unscoped enumerator in the enclosing scope. Scoped
// enumerators are only reachable qualified.
func (w *walker) enumerator(n *sitter.Node) {
	if name := n.ChildByFieldName("name"); name != nil {
		if scopedEnum(n) {
			w.declSites[name.StartByte()] = true
		} else {
			w.declare(name)
		}
	}
	if v := n.ChildByFieldName("value"); v != nil {
		w.visit(v)
	}
}

func scopedEnum(enumerator *sitter.Node) bool {
	list := enumerator.Parent()
	if list == nil || list.Parent() == nil {
		return false
	}
	spec := list.Parent()
	for i := 0; i < int(spec.ChildCount()); i++ {
		if t := spec.Child(i).Type(); t == "class" || t == "struct" {
			return true
		}
	}
	return false
}

// lambdaCaptures leaves captured names alone and binds them in the lambda
// scope. A capture of a migrated handle cannot be rewritten in place.
func (w *walker) lambdaCaptures(n *sitter.Node) {
	var walk func(c *sitter.Node)
	walk = func(c *sitter.Node) {
		if c.Type() == "identifier" {
			if name := c.Content(w.src); w.isParam(name) {
				if !w.resolvesLocally(name) && !w.fileBindings[name] {
					w.warn(c, name, "%s captured by a lambda", name)
				}
				w.scopes[len(w.scopes)-1][name] = true
			}
			return
		}
		for i := 0; i < int(c.ChildCount()); i++ {
			walk(c.Child(i))
		}
	}
	walk(n)
}

func (w *walker) reportUnparsed(n *sitter.Node) {
	var walk func(c *sitter.Node)
	walk = func(c *sitter.Node) {
		if c.Type() == "identifier" {
			if name := c.Content(w.src); w.isParam(name) {
				w.warn(c, name, "%s appears in text that did not parse", name)
			}
		}
		for i := 0; i < int(c.ChildCount()); i++ {
			walk(c.Child(i))
		}
	}
	walk(n)
}

func (w *walker) scanMacroBody(v *sitter.Node) {
	for _, word := range wordPattern.FindAllString(v.Content(w.src), -1) {
		if w.isParam(word) {
			w.warn(v, word, "%s used inside a macro body", word)
		}
	}
}

func (w *walker) macroDefinition(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(w.src)
	if w.isParam(name) {
		w.fileBindings[name] = true
		w.fail(nameNode, name, "macro %s collides with the migrated member", name)
		return
	}
	value := n.ChildByFieldName("value")
	if value == nil {
		return
	}
	if w.opts.Boundary != "" && boundaryMacroPattern.MatchString(name) {
		body := strings.TrimRight(value.Content(w.src), " \t\r\n")
		w.replace(value.StartByte(), value.StartByte()+uint32(len(body)), w.opts.qualify(w.opts.Boundary))
		return
	}
	w.scanMacroBody(value)
}

func (w *walker) classSpecifier(n *sitter.Node) {
	name := ""
	if nn := n.ChildByFieldName("name"); nn != nil {
		name = nn.Content(w.src)
	}
	w.classes = append(w.classes, name)
	w.push()
	w.visitChildren(n)
	w.pop()
	w.classes = w.classes[:len(w.classes)-1]
}

// functionDeclarator finds the function_declarator under a declarator chain
func functionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		if n.Type() == "function_declarator" {
			return n
		}
		next := n.ChildByFieldName("declarator")
		if next == nil && n.NamedChildCount() > 0 && n.Type() == "reference_declarator" {
			next = n.NamedChild(int(n.NamedChildCount()) - 1)
		}
		n = next
	}
	return nil
}

func (w *walker) functionDefinition(n *sitter.Node) {
	fd := functionDeclarator(n.ChildByFieldName("declarator"))
	savedForeign := w.foreign
	isCtor := false

	if fd != nil {
		nameNode := fd.ChildByFieldName("declarator")
		switch {
		case nameNode != nil && nameNode.Type() == "qualified_identifier":
			scopeName := ""
			if s := nameNode.ChildByFieldName("scope"); s != nil {
				scopeName = s.Content(w.src)
			}
			fname := ""
			if s := nameNode.ChildByFieldName("name"); s != nil {
				fname = s.Content(w.src)
			}
			w.foreign = w.opts.Class != "" && scopeName != w.opts.Class
			isCtor = w.opts.Class != "" && scopeName == w.opts.Class && fname == w.opts.Class
		case len(w.classes) > 0:
			owner := w.classes[len(w.classes)-1]
			w.foreign = w.opts.Class != "" && owner != w.opts.Class
			isCtor = !w.foreign && nameNode != nil && nameNode.Content(w.src) == owner
		default:
			if nameNode != nil {
				w.declare(nameNode)
			}
		}
		if pl := fd.ChildByFieldName("parameters"); pl != nil {
			w.ownParams, w.hasOwnParams = pl.StartByte(), true
		}
	}

	w.push()
	w.visitChildren(n)
	w.pop()
	w.hasOwnParams = false

	if isCtor && w.opts.Registry != "" {
		w.threadConstructor(n, fd)
	}
	w.foreign = savedForeign
}

// threadConstructor makes the constructor accept the registry as its first
// parameter, forward it to the base class and store it
func (w *walker) threadConstructor(n, fd *sitter.Node) {
	regType, parentCast := w.opts.Registry+"& ", "static_cast<"+w.opts.ParentRegistry+"&>("
	if w.opts.pointer() {
		regType, parentCast = w.opts.Registry+"* ", "static_cast<"+w.opts.ParentRegistry+"*>("
	}
	ind := w.opts.Indirection

	if pl := fd.ChildByFieldName("parameters"); pl != nil {
		text := regType + ind
		if pl.NamedChildCount() > 0 {
			text += ", "
		}
		w.insert(pl.StartByte()+1, text)
	}

	var inits *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == "field_initializer_list" {
			inits = c
			break
		}
	}
	storeInit := ind + "(" + ind + ")"
	if inits == nil {
		w.insert(fd.EndByte(), "\n    : "+storeInit)
		w.res.ConstructorThreaded = true
		return
	}
	if w.opts.Parent != "" && w.opts.ParentRegistry != "" {
		for i := 0; i < int(inits.NamedChildCount()); i++ {
			fi := inits.NamedChild(i)
			if fi.Type() != "field_initializer" || fi.NamedChildCount() == 0 {
				continue
			}
			if fi.NamedChild(0).Content(w.src) != w.opts.Parent {
				continue
			}
			for j := 0; j < int(fi.NamedChildCount()); j++ {
				args := fi.NamedChild(j)
				if args.Type() != "argument_list" {
					continue
				}
				text := parentCast + ind + ")"
				if args.NamedChildCount() > 0 {
					text += ", "
				}
				w.insert(args.StartByte()+1, text)
			}
		}
	}
	w.insert(inits.EndByte(), ",\n      "+storeInit)
	w.res.ConstructorThreaded = true
}

// factorySite allocates a registry before each `new Class(...)` and passes
// it as the first argument. The first site of a block declares the
// variable, later ones reassign it.
func (w *walker) factorySite(n *sitter.Node) {
	if w.opts.Registry == "" || w.opts.Class == "" {
		return
	}
	typ := n.ChildByFieldName("type")
	if typ == nil || typ.Content(w.src) != w.opts.Class {
		return
	}
	stmt := n.Parent()
	for stmt != nil {
		switch stmt.Type() {
		case "expression_statement", "declaration", "return_statement":
		default:
			stmt = stmt.Parent()
			continue
		}
		break
	}
	if stmt == nil {
		w.warn(n, w.opts.Class, "new %s outside a statement", w.opts.Class)
		return
	}
	block := stmt.Parent()
	if block == nil || block.Type() != "compound_statement" {
		w.warn(n, w.opts.Class, "new %s is not a statement of a block; the registry has to be allocated by hand", w.opts.Class)
		return
	}
	ind := w.opts.Indirection
	if !w.factoryStmts[stmt.StartByte()] {
		w.factoryStmts[stmt.StartByte()] = true
		alloc := ind + " = new " + w.opts.Registry + ";\n"
		if !w.factoryBlocks[block.StartByte()] {
			w.factoryBlocks[block.StartByte()] = true
			alloc = w.opts.Registry + "* " + alloc
		}
		w.insert(stmt.StartByte(), alloc+w.indentOf(stmt.StartByte()))
	}
	if args := n.ChildByFieldName("arguments"); args != nil && args.Type() == "argument_list" {
		arg := ind
		if !w.opts.pointer() {
			arg = "*" + ind
		}
		if args.NamedChildCount() > 0 {
			arg += ", "
		}
		w.insert(args.StartByte()+1, arg)
	}
	w.res.FactorySites++
}

func (w *walker) indentOf(off uint32) string {
	start := int(off)
	for start > 0 && w.src[start-1] != '\n' {
		start--
	}
	indent := w.src[start:off]
	if strings.TrimLeft(string(indent), " \t") != "" {
		return ""
	}
	return string(indent)
}

// removeRegistration deletes a registration call whose handle is a
// migrated parameter
func (w *walker) removeRegistration(n *sitter.Node) bool {
	if w.opts.KeepRegistrations || n.NamedChildCount() == 0 {
		return false
	}
	call := n.NamedChild(0)
	if call.Type() != "call_expression" {
		return false
	}
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return false
	}
	fname := ""
	switch fn.Type() {
	case "identifier":
		fname = fn.Content(w.src)
	case "field_expression":
		if f := fn.ChildByFieldName("field"); f != nil {
			fname = f.Content(w.src)
		}
	case "qualified_identifier":
		if f := fn.ChildByFieldName("name"); f != nil {
			fname = f.Content(w.src)
		}
	}
	if !registrationFuncs[fname] {
		return false
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() < 3 {
		return false
	}
	last := args.NamedChild(int(args.NamedChildCount()) - 1)
	if last.Type() != "pointer_expression" {
		return false
	}
	target := last.ChildByFieldName("argument")
	if target == nil {
		return false
	}
	handle := target.Content(w.src)
	if target.Type() == "field_expression" {
		if f := target.ChildByFieldName("field"); f != nil {
			handle = f.Content(w.src)
		}
	}
	if !w.isParam(handle) {
		return false
	}
	start, end := w.lineSpan(n.StartByte(), n.EndByte())
	w.replace(start, end, "")
	w.res.RemovedCalls++
	return true
}

// lineSpan widens [start,end) to whole lines when nothing else shares them
func (w *walker) lineSpan(start, end uint32) (uint32, uint32) {
	s := int(start)
	for s > 0 && (w.src[s-1] == ' ' || w.src[s-1] == '\t') {
		s--
	}
	if s > 0 && w.src[s-1] != '\n' {
		return start, end
	}
	e := int(end)
	for e < len(w.src) && (w.src[e] == ' ' || w.src[e] == '\t' || w.src[e] == '\r') {
		e++
	}
	if e < len(w.src) && w.src[e] != '\n' {
		return start, end
	}
	if e < len(w.src) {
		e++
	}
	return uint32(s), uint32(e)
}
