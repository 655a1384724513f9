package pipeline

// =============================================================================
// PIPELINE PHILOSOPHY: ONE MODULE NEVER TAKES DOWN ANOTHER
// =============================================================================
//
// The pipeline runs the per-module stage chain
//
//	read -> scan -> tree -> contract -> lint -> merge -> emit -> migrate
//
// over every configured or discovered module. Stage problems are
// diagnostics on the module's Outcome, not Go errors: a module that cannot
// be scanned is marked failed and the batch carries on. Go errors are kept
// for things that stop the whole run (bad config, a schema that does not
// compile, cancellation).
//
// A module that inherits from a base is processed after it, in a later
// level. Modules in the same level share nothing mutable and run on a
// bounded worker pool.
//
// IMPORTANT: no stage reaches back to "fix" the output of an earlier one.
// If the emitter sees a bad parameter list, the scanner is wrong.
// =============================================================================

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/paramgen/internal/config"
	"github.com/robert-at-pretension-io/paramgen/internal/diag"
	"github.com/robert-at-pretension-io/paramgen/internal/emit"
	"github.com/robert-at-pretension-io/paramgen/internal/facts"
	"github.com/robert-at-pretension-io/paramgen/internal/logging"
	"github.com/robert-at-pretension-io/paramgen/internal/logging/logfields"
	"github.com/robert-at-pretension-io/paramgen/internal/merge"
	"github.com/robert-at-pretension-io/paramgen/internal/param"
	"github.com/robert-at-pretension-io/paramgen/internal/policy"
	"github.com/robert-at-pretension-io/paramgen/internal/rewrite"
	"github.com/robert-at-pretension-io/paramgen/internal/scanner"
	"github.com/robert-at-pretension-io/paramgen/internal/tree"
	"github.com/robert-at-pretension-io/paramgen/internal/validator"
)

// Outcome status values
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Stage names used in timings, metrics and logs
const (
	StageRead     = "read"
	StageScan     = "scan"
	StageTree     = "tree"
	StageContract = "contract"
	StageLint     = "lint"
	StageMerge    = "merge"
	StageEmit     = "emit"
	StageMigrate  = "migrate"
)

// Artifact is one generated file
type Artifact struct {
	// Kind is the artifact name from the config, e.g. "registry"
	Kind string `json:"kind"`
	// Path is slash separated and relative to the module's output directory
	Path    string `json:"path"`
	Content []byte `json:"-"`
}

// Outcome is everything one module produced
type Outcome struct {
	Module     string
	HeaderPath string
	ImplPath   string
	Class      string
	Parent     string
	Base       string
	Registry   string

	Status      string
	Params      param.List
	Minimal     param.List
	Renames     param.RenameTable
	Artifacts   []Artifact
	Diagnostics diag.List

	Stages   map[string]time.Duration
	Duration time.Duration

	scanned bool
	began   map[string]time.Time
}

func newOutcome(m config.ModuleEntry) *Outcome {
	return &Outcome{
		Module:     m.Name,
		HeaderPath: m.Header,
		ImplPath:   m.Impl,
		Base:       m.Base,
		Stages:     make(map[string]time.Duration),
		began:      make(map[string]time.Time),
	}
}

func (o *Outcome) add(diags ...diag.Diagnostic) {
	o.Diagnostics = append(o.Diagnostics, diags...)
}

func (o *Outcome) artifact(kind, path string, content []byte) {
	o.Artifacts = append(o.Artifacts, Artifact{Kind: kind, Path: path, Content: content})
}

// finish settles the status: failed when no parameter list came out of the
// scan, partial when any error was reported after it
func (o *Outcome) finish() {
	o.Diagnostics = o.Diagnostics.Sorted()
	switch {
	case !o.scanned:
		o.Status = StatusFailed
	case o.Diagnostics.HasFatal():
		o.Status = StatusPartial
	default:
		o.Status = StatusOK
	}
}

// Artifact returns the first artifact of a kind
func (o *Outcome) Artifact(kind string) (Artifact, bool) {
	for _, a := range o.Artifacts {
		if a.Kind == kind {
			return a, true
		}
	}
	return Artifact{}, false
}

// Report is the result of one batch run
type Report struct {
	Root      string
	OutputDir string
	Outcomes  []*Outcome
	Summary   diag.Summary
	Duration  time.Duration
}

// Outcome finds a module's outcome by name
func (r *Report) Outcome(module string) *Outcome {
	for _, o := range r.Outcomes {
		if o.Module == module {
			return o
		}
	}
	return nil
}

// Diagnostics returns every diagnostic of the run
func (r *Report) Diagnostics() diag.List {
	var out diag.List
	for _, o := range r.Outcomes {
		out = append(out, o.Diagnostics...)
	}
	return out
}

// HasErrors reports whether any module reported an error
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

// ArtifactPath is where an artifact of a module is written
func (r *Report) ArtifactPath(o *Outcome, a Artifact) string {
	return filepath.Join(r.OutputDir, o.Module, filepath.FromSlash(a.Path))
}

// Facts converts the outcomes into fact-table input
func (r *Report) Facts() []facts.Module {
	out := make([]facts.Module, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, facts.Module{
			Name:        o.Module,
			HeaderPath:  o.HeaderPath,
			ImplPath:    o.ImplPath,
			Class:       o.Class,
			Parent:      o.Parent,
			Base:        o.Base,
			Status:      o.Status,
			Registry:    o.Registry,
			Params:      o.Params,
			Minimal:     o.Minimal,
			Renames:     o.Renames,
			Diagnostics: o.Diagnostics,
		})
	}
	return out
}

// Pipeline runs the stage chain over a project
type Pipeline struct {
	Config *config.Config

	// Modules restricts the run to the named modules. Their bases are
	// processed too but their artifacts are not written.
	Modules []string

	// DryRun keeps artifacts in memory
	DryRun bool

	log *logrus.Entry

	treesMu sync.Mutex
	trees   *validator.TreeValidator
	lint    *policy.Engine
}

// New compiles the UI-tree contract and the lint rules once for the run
func New(cfg *config.Config, log logrus.FieldLogger) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	trees, err := validator.NewTreeValidator()
	if err != nil {
		return nil, fmt.Errorf("loading UI tree contract: %w", err)
	}
	p := &Pipeline{
		Config: cfg,
		log:    logging.Subsys(log, "pipeline"),
		trees:  trees,
	}
	if cfg.LintEnabled() {
		p.lint, err = policy.NewFromDir(cfg.Lint.PolicyDir)
		if err != nil {
			return nil, fmt.Errorf("loading lint rules: %w", err)
		}
	}
	return p, nil
}

// Run processes every module under rootPath and, unless DryRun is set,
// writes the artifacts. The report is returned even when writing fails.
func (p *Pipeline) Run(ctx context.Context, rootPath string) (*Report, error) {
	runStart := time.Now()
	cfg := p.Config

	timing := newTimingRecorder(runStart, rootRelative(rootPath, cfg.Analysis.Timing))
	if err := timing.Err(); err != nil {
		p.log.WithError(err).Warn("timing output disabled")
	}
	defer timing.Close()

	stepStart := time.Now()
	mods, err := cfg.ResolveModules(rootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve modules: %w", err)
	}
	selected := make(map[string]bool)
	if len(p.Modules) > 0 {
		if mods, err = withBases(mods, p.Modules); err != nil {
			return nil, err
		}
		for _, name := range p.Modules {
			selected[name] = true
		}
	} else {
		for _, m := range mods {
			selected[m.Name] = true
		}
	}
	timing.RecordBatch("resolve", stepStart, time.Since(stepStart), "")
	p.log.Debugf("resolved %d module(s)", len(mods))

	levels, cyclic := baseLevels(mods)
	done := make(map[string]*Outcome, len(mods))
	registry := make(map[string]*param.Module, len(mods))
	for _, m := range cyclic {
		o := newOutcome(m)
		o.add(diag.Errorf(diag.InputUnavailable, m.Name, "", -1, "base chain of %s is cyclic", m.Name))
		o.finish()
		done[m.Name] = o
	}

	limit := cfg.Analysis.MaxParallelModules
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	for _, level := range levels {
		results := make([]*Outcome, len(level))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for i, m := range level {
			inherited, baseErr := p.inherited(m, done, registry)
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if baseErr != nil {
					o := newOutcome(m)
					o.add(diag.Errorf(diag.InputUnavailable, m.Name, "", -1, "%v", baseErr))
					o.finish()
					results[i] = o
					return nil
				}
				results[i] = p.process(gctx, m, inherited, timing)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for i, m := range level {
			o := results[i]
			done[m.Name] = o
			registry[m.Name] = &param.Module{
				Name:       o.Module,
				HeaderPath: o.HeaderPath,
				ImplPath:   o.ImplPath,
				Class:      o.Class,
				Parent:     o.Parent,
				Params:     o.Params,
				Base:       registry[m.Base],
			}
		}
	}

	report := &Report{
		Root:      rootPath,
		OutputDir: rootRelative(rootPath, cfg.Output.Dir),
	}
	for _, m := range mods {
		if selected[m.Name] {
			report.Outcomes = append(report.Outcomes, done[m.Name])
		}
	}
	report.Summary = report.Diagnostics().Summarize()

	var errs []error
	if !p.DryRun {
		stepStart = time.Now()
		errs = append(errs, p.write(report))
		timing.RecordBatch("write", stepStart, time.Since(stepStart), "")
	}

	report.Duration = time.Since(runStart)
	timing.RecordBatch("total", runStart, report.Duration, "")

	if path := rootRelative(rootPath, cfg.Analysis.Metrics); path != "" {
		m := newMetrics()
		for _, o := range report.Outcomes {
			m.observe(o)
		}
		errs = append(errs, m.write(path))
	}

	p.log.WithFields(logrus.Fields{
		logfields.Diagnostics: report.Summary.Total,
		logfields.Duration:    report.Duration,
	}).Infof("processed %d module(s): %d error(s), %d warning(s)",
		len(report.Outcomes), report.Summary.Errors, report.Summary.Warnings)

	return report, errors.Join(errs...)
}

// inherited returns the parameters a module's base chain provides
func (p *Pipeline) inherited(m config.ModuleEntry, done map[string]*Outcome, registry map[string]*param.Module) (param.List, error) {
	if m.Base == "" {
		return nil, nil
	}
	base, ok := done[m.Base]
	if !ok {
		return nil, fmt.Errorf("base module %s was not processed", m.Base)
	}
	if base.Status == StatusFailed {
		return nil, fmt.Errorf("base module %s failed", m.Base)
	}
	child := &param.Module{Name: m.Name, Base: registry[m.Base]}
	return child.Inherited(), nil
}

func (p *Pipeline) process(ctx context.Context, m config.ModuleEntry, inherited param.List, timing *timingRecorder) *Outcome {
	o := p.ProcessModule(ctx, m, inherited)
	for stage, d := range o.Stages {
		timing.RecordModule(stage, o.Module, o.Status, o.began[stage], d)
	}
	return o
}

type inputs struct {
	header   string
	impl     string
	baseList param.List
	renames  param.RenameTable
	skeleton *tree.Skeleton
}

// readInputs loads the module's source pair and auxiliary YAML files. Any
// failure makes the module unavailable.
func readInputs(m config.ModuleEntry) (inputs, diag.List) {
	var (
		in    inputs
		diags diag.List
	)
	unavailable := func(path string, err error) {
		diags = append(diags, diag.Errorf(diag.InputUnavailable, m.Name, "", -1, "%v", err).At(path, 0))
	}

	if data, err := os.ReadFile(m.Header); err != nil {
		unavailable(m.Header, fmt.Errorf("reading header: %w", err))
	} else {
		in.header = string(data)
	}
	if m.Impl != "" {
		if data, err := os.ReadFile(m.Impl); err != nil {
			unavailable(m.Impl, fmt.Errorf("reading implementation: %w", err))
		} else {
			in.impl = string(data)
		}
	}

	var err error
	if m.BaseFile != "" {
		if in.baseList, err = param.LoadList(m.BaseFile); err != nil {
			unavailable(m.BaseFile, err)
		}
	}
	if m.Renames != "" {
		if in.renames, err = param.LoadRenames(m.Renames); err != nil {
			unavailable(m.Renames, err)
		}
	}
	if m.Skeleton != "" {
		if in.skeleton, err = tree.LoadSkeleton(m.Skeleton); err != nil {
			unavailable(m.Skeleton, err)
		}
	}
	return in, diags
}

// ProcessModule runs the stage chain for one module. inherited is the
// parameter list provided by its base chain.
func (p *Pipeline) ProcessModule(ctx context.Context, m config.ModuleEntry, inherited param.List) *Outcome {
	start := time.Now()
	o := newOutcome(m)
	log := p.log.WithField(logfields.Module, m.Name)
	defer func() {
		o.Duration = time.Since(start)
		o.finish()
		entry := log.WithFields(logrus.Fields{
			logfields.Status:      o.Status,
			logfields.Parameters:  len(o.Params),
			logfields.Diagnostics: len(o.Diagnostics),
			logfields.Duration:    o.Duration,
		})
		if o.Status == StatusOK {
			entry.Debug("module processed")
		} else {
			entry.Warn("module processed with errors")
		}
	}()
	stage := func(name string, began time.Time) {
		o.Stages[name] += time.Since(began)
		if _, ok := o.began[name]; !ok {
			o.began[name] = began
		}
	}

	began := time.Now()
	in, diags := readInputs(m)
	o.add(diags...)
	stage(StageRead, began)
	if diags.HasFatal() {
		return o
	}

	began = time.Now()
	scanned, diags := scanner.Scan(m.Name, scanner.Source{
		HeaderPath: m.Header,
		Header:     in.header,
		ImplPath:   m.Impl,
		Impl:       in.impl,
	})
	o.add(diags...)
	stage(StageScan, began)
	if diags.HasFatal() {
		return o
	}
	o.Class = firstNonEmpty(m.Class, scanned.Class)
	o.Parent = firstNonEmpty(m.Parent, scanned.Parent)
	if o.Class == "" {
		o.add(diag.Errorf(diag.MalformedDeclaration, m.Name, "", -1, "no driver class declared").At(m.Header, 0))
		return o
	}
	o.Registry = param.RegistryClass(o.Class)
	o.scanned = true

	began = time.Now()
	list := in.skeleton.Apply(scanned.Params)
	o.Params = list
	t := tree.Build(list, in.skeleton)
	stage(StageTree, began)

	began = time.Now()
	treeJSON, err := emit.UITree(t, p.Config.Output.IndentJSON)
	treeOK := err == nil
	if err != nil {
		o.add(diag.Errorf(diag.ContractViolation, m.Name, "", -1, "serializing UI tree: %v", err))
	} else {
		for _, msg := range p.checkTree(treeJSON) {
			o.add(diag.Errorf(diag.ContractViolation, m.Name, "", -1, "UI tree: %s", msg))
			treeOK = false
		}
	}
	stage(StageContract, began)

	if p.lint != nil {
		began = time.Now()
		res, err := p.lint.Evaluate(ctx, policy.NewInput(m.Name, list, p.Config.Lint.Rules))
		if err != nil {
			log.WithError(err).Warn("lint evaluation failed")
		} else {
			o.add(res.Diagnostics(m.Name)...)
		}
		stage(StageLint, began)
	}

	began = time.Now()
	merged, diags := merge.Resolve(m.Name, list, param.Union(inherited, in.baseList), in.renames)
	o.Minimal = merged.Minimal
	o.Renames = merged.Applied
	o.add(diags...)
	mergeOK := !diags.HasFatal()
	stage(StageMerge, began)

	began = time.Now()
	reg := emit.Registry{
		Class:  o.Registry,
		Parent: param.ParentRegistryClass(o.Parent),
		Label:  m.Label,
	}
	fail := func(artifact string, err error) {
		o.add(diag.Errorf(diag.MalformedDeclaration, m.Name, "", -1, "%s artifact: %v", artifact, err))
	}
	if p.Config.Wants(m, config.ArtifactRegistry) {
		if text, err := emit.RegistryClass(reg, list, t); err != nil {
			fail(config.ArtifactRegistry, err)
		} else {
			o.artifact(config.ArtifactRegistry, reg.Class+".h", []byte(text))
		}
	}
	if p.Config.Wants(m, config.ArtifactMinimal) && mergeOK {
		if text, err := emit.RegistryClass(reg, merged.Minimal, tree.Build(merged.Minimal, in.skeleton)); err != nil {
			fail(config.ArtifactMinimal, err)
		} else {
			o.artifact(config.ArtifactMinimal, reg.Class+".minimal.h", []byte(text))
		}
	}
	if p.Config.Wants(m, config.ArtifactInline) {
		inline := o.Class + "Parameters"
		if src, err := emit.InlineClass(inline, list); err != nil {
			fail(config.ArtifactInline, err)
		} else {
			o.artifact(config.ArtifactInline, inline+".h", []byte(src.Header))
			o.artifact(config.ArtifactInline, inline+".cpp", []byte(src.Impl))
		}
	}
	if p.Config.Wants(m, config.ArtifactUITree) && treeOK {
		o.artifact(config.ArtifactUITree, m.Name+".pvi.json", append(treeJSON, '\n'))
	}
	stage(StageEmit, began)

	if p.Config.Wants(m, config.ArtifactModule) {
		began = time.Now()
		p.migrate(ctx, o, m, in, list, param.Union(list, inherited, in.baseList), reg)
		stage(StageMigrate, began)
	}

	return o
}

// migrate rewrites the implementation and regenerates the header around
// the injected registry. references also covers inherited handles, which
// live in the parent registry after migration; only the module's own
// list is removed from the header.
func (p *Pipeline) migrate(ctx context.Context, o *Outcome, m config.ModuleEntry, in inputs, list, references param.List, reg emit.Registry) {
	rw := p.Config.Rewrite
	impl := ""
	if in.impl != "" {
		engine := rewrite.New(rewrite.Options{
			Indirection:       rw.Indirection,
			Accessor:          rw.Accessor,
			Class:             o.Class,
			Parent:            o.Parent,
			Registry:          reg.Class,
			ParentRegistry:    reg.Parent,
			Boundary:          reg.Boundary(),
			KeepRegistrations: rw.KeepRegistrations,
			File:              m.Impl,
		})
		res, diags, err := engine.Rewrite(ctx, m.Name, []byte(in.impl), references)
		if err != nil {
			o.add(diag.Errorf(diag.MalformedDeclaration, m.Name, "", -1, "%v", err).At(m.Impl, 0))
			return
		}
		o.add(diags...)
		if diags.HasFatal() {
			return
		}
		impl = res.Source
		p.log.WithFields(logrus.Fields{
			logfields.Module: m.Name,
			logfields.Stage:  StageMigrate,
		}).Debugf("qualified %d reference(s), removed %d registration(s), %d factory site(s)",
			res.Qualified, res.RemovedCalls, res.FactorySites)
	}

	src, diags := emit.Module(emit.ModuleHeader{
		Module:      m.Name,
		File:        m.Header,
		Class:       o.Class,
		Registry:    reg.Class,
		Indirection: rw.Indirection,
		Accessor:    rw.Accessor,
	}, in.header, list, impl)
	o.add(diags...)
	o.artifact(config.ArtifactModule, "migrated/"+filepath.Base(m.Header), []byte(src.Header))
	if impl != "" {
		o.artifact(config.ArtifactModule, "migrated/"+filepath.Base(m.Impl), []byte(src.Impl))
	}
}

// checkTree validates serialized trees one at a time; a CUE context is not
// safe for concurrent use
func (p *Pipeline) checkTree(data []byte) []string {
	p.treesMu.Lock()
	defer p.treesMu.Unlock()
	return p.trees.ValidationErrors(data)
}

// write stores every artifact of the report under the output directory
func (p *Pipeline) write(report *Report) error {
	var errs []error
	for _, o := range report.Outcomes {
		for _, a := range o.Artifacts {
			path := report.ArtifactPath(o, a)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				errs = append(errs, fmt.Errorf("creating output directory: %w", err))
				continue
			}
			if err := os.WriteFile(path, a.Content, 0o644); err != nil {
				errs = append(errs, fmt.Errorf("writing %s: %w", a.Kind, err))
				continue
			}
			p.log.WithFields(logrus.Fields{
				logfields.Module:   o.Module,
				logfields.Artifact: a.Kind,
				logfields.Path:     path,
			}).Debug("artifact written")
		}
	}
	return errors.Join(errs...)
}

func rootRelative(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
