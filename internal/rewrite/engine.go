package rewrite

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/robert-at-pretension-io/paramgen/internal/diag"
	"github.com/robert-at-pretension-io/paramgen/internal/param"
)

// DefaultIndirection is the name of the injected registry value
const DefaultIndirection = "paramSet"

var boundaryMacroPattern = regexp.MustCompile(`^FIRST_\w*_PARAM\w*$`)

// Options configures one rewrite
type Options struct {
	// Indirection is the variable every migrated reference goes through
	Indirection string
	// Accessor joins the indirection and the name: "." or "->"
	Accessor string
	// Class owns the migrated members. Functions qualified with another
	// class are left alone. Empty means every function is owned.
	Class string
	// Parent is the base class whose constructor call receives the registry
	Parent string
	// Registry and ParentRegistry name the generated registry classes. An
	// empty Registry disables constructor and factory threading.
	Registry       string
	ParentRegistry string
	// Boundary is the registry's exported first-parameter constant. Empty
	// leaves FIRST_*_PARAM macros alone.
	Boundary string
	// KeepRegistrations leaves registration calls for migrated parameters
	// in place
	KeepRegistrations bool
	// File labels diagnostics
	File string
}

func (o Options) withDefaults() Options {
	if o.Indirection == "" {
		o.Indirection = DefaultIndirection
	}
	if o.Accessor == "" {
		o.Accessor = "."
	}
	return o
}

func (o Options) pointer() bool {
	return o.Accessor == "->"
}

func (o Options) qualify(name string) string {
	return o.Indirection + o.Accessor + name
}

// Result is the rewritten source plus counters for reporting
type Result struct {
	Source              string
	Qualified           int
	RemovedCalls        int
	ConstructorThreaded bool
	FactorySites        int
}

// Engine rewrites bare parameter references in C++ implementation text.
// An Engine owns a tree-sitter parser and must not be shared between
// goroutines.
type Engine struct {
	opts   Options
	parser *sitter.Parser
}

// New creates an Engine with the C++ grammar loaded
func New(opts Options) *Engine {
	parser := sitter.NewParser()
	parser.SetLanguage(cpp.GetLanguage())
	return &Engine{opts: opts.withDefaults(), parser: parser}
}

// Rewrite qualifies every bare reference to a parameter handle that resolves
// to the migrated member. References the engine cannot classify are left
// as they are and reported as warnings. A fatal diagnostic means no source
// was produced.
func (e *Engine) Rewrite(ctx context.Context, module string, src []byte, list param.List) (Result, diag.List, error) {
	tree, err := e.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return Result{}, nil, fmt.Errorf("parsing %s: %w", e.opts.File, err)
	}
	defer tree.Close()

	w := newWalker(module, e.opts, src, list)
	w.visit(tree.RootNode())

	if w.diags.HasFatal() {
		return Result{}, w.diags, nil
	}
	res := w.res
	res.Source = applyEdits(src, w.edits)
	return res, w.diags, nil
}

type edit struct {
	start, end uint32
	text       string
	seq        int
}

// applyEdits splices edits into src. Insertions at the same offset keep
// the order they were recorded in.
func applyEdits(src []byte, edits []edit) string {
	sorted := append([]edit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].start != sorted[j].start {
			return sorted[i].start > sorted[j].start
		}
		return sorted[i].seq > sorted[j].seq
	})
	out := append([]byte(nil), src...)
	for _, e := range sorted {
		tail := append([]byte(e.text), out[e.end:]...)
		out = append(out[:e.start], tail...)
	}
	return string(out)
}
