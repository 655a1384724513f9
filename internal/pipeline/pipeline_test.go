package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/robert-at-pretension-io/paramgen/internal/config"
	"github.com/robert-at-pretension-io/paramgen/internal/diag"
	"github.com/robert-at-pretension-io/paramgen/internal/facts"
	"github.com/robert-at-pretension-io/paramgen/internal/logging"
	"github.com/robert-at-pretension-io/paramgen/internal/param"
	"github.com/robert-at-pretension-io/paramgen/internal/scanner"
	"github.com/robert-at-pretension-io/paramgen/internal/validator"
)

// copyProject copies testdata/project into a temp dir so runs never write
// into the fixture
func copyProject(t *testing.T) string {
	t.Helper()
	src := filepath.Join("testdata", "project")
	dst := t.TempDir()
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		t.Fatalf("copy fixture: %v", err)
	}
	return dst
}

func loadProject(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFile(filepath.Join(root, "paramgen.json"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config) *Pipeline {
	t.Helper()
	p, err := New(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func readOutput(t *testing.T, root string, parts ...string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(append([]string{root, "out"}, parts...)...))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	return string(data)
}

func TestRunEndToEnd(t *testing.T) {
	root := copyProject(t)
	cfg := loadProject(t, root)
	cfg.Analysis.Timing = "timing.jsonl"
	cfg.Analysis.Metrics = "metrics.prom"

	report, err := newPipeline(t, cfg).Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var statuses []string
	for _, o := range report.Outcomes {
		statuses = append(statuses, o.Module+"="+o.Status)
	}
	want := []string{"base=ok", "demo=ok", "broken=failed", "orphan=failed"}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if !report.HasErrors() {
		t.Fatalf("expected the failed modules to count as errors")
	}

	demo := report.Outcome("demo")
	if demo.Class != "demoDetector" || demo.Parent != "baseDriver" || demo.Registry != "demoDetectorParamSet" {
		t.Fatalf("unexpected demo identity: %+v", demo)
	}
	if got := demo.Params.Names(); !cmp.Equal(got, []string{"DemoAcquire", "DemoGain", "DemoArmed"}) {
		t.Fatalf("params=%v", got)
	}
	var minimal []int
	for _, p := range demo.Minimal {
		minimal = append(minimal, p.DeclOrder)
	}
	if got := demo.Minimal.Names(); !cmp.Equal(got, []string{"DemoGain", "DemoArmed"}) || !cmp.Equal(minimal, []int{1, 2}) {
		t.Fatalf("minimal=%v orders=%v", got, minimal)
	}
	if diff := cmp.Diff(param.RenameTable{{Legacy: "DemoAcquire", Canonical: "BaseAcquire"}}, demo.Renames); diff != "" {
		t.Fatalf("renames mismatch (-want +got):\n%s", diff)
	}

	if d := report.Outcome("broken").Diagnostics.OfKind(diag.MalformedDeclaration); len(d) == 0 {
		t.Fatalf("broken: expected MalformedDeclaration, got %v", report.Outcome("broken").Diagnostics)
	}
	orphan := report.Outcome("orphan")
	if d := orphan.Diagnostics.OfKind(diag.InputUnavailable); len(d) != 1 || !strings.Contains(d[0].Message, "broken") {
		t.Fatalf("orphan: expected InputUnavailable naming its base, got %v", orphan.Diagnostics)
	}
	if len(orphan.Artifacts) != 0 {
		t.Fatalf("orphan produced artifacts: %v", orphan.Artifacts)
	}

	// registry round trip
	registry := readOutput(t, root, "demo", "demoDetectorParamSet.h")
	rescan, diags := scanner.Scan("demo", scanner.Source{HeaderPath: "demoDetectorParamSet.h", Header: registry})
	if diags.HasFatal() {
		t.Fatalf("rescan failed: %v", diags)
	}
	if got := rescan.Params.Names(); !cmp.Equal(got, demo.Params.Names()) {
		t.Fatalf("rescanned names=%v", got)
	}

	minimalHeader := readOutput(t, root, "demo", "demoDetectorParamSet.minimal.h")
	for _, want := range []string{
		"class demoDetectorParamSet : public virtual baseDriverParamSet {",
		"#define FIRST_DEMODETECTORPARAMSET_PARAM DemoGain\n",
	} {
		if !strings.Contains(minimalHeader, want) {
			t.Fatalf("minimal registry missing %q:\n%s", want, minimalHeader)
		}
	}
	if strings.Contains(minimalHeader, "DemoAcquire") {
		t.Fatalf("minimal registry re-declares an inherited parameter:\n%s", minimalHeader)
	}

	inline := readOutput(t, root, "demo", "demoDetectorParameters.h")
	if !strings.Contains(inline, "    /* Group: Parameters */\n    int DemoAcquire;  /* asynParamInt32 Setting */\n") {
		t.Fatalf("unexpected inline header:\n%s", inline)
	}
	readOutput(t, root, "demo", "demoDetectorParameters.cpp")

	uiTree := readOutput(t, root, "demo", "demo.pvi.json")
	tv, err := validator.NewTreeValidator()
	if err != nil {
		t.Fatalf("NewTreeValidator: %v", err)
	}
	if err := tv.Validate([]byte(uiTree)); err != nil {
		t.Fatalf("emitted tree fails its contract: %v", err)
	}
	if !strings.Contains(uiTree, `{"type":"SignalW","name":"DemoArmed","pv":"ARMED","widget":{"type":"CheckBox"}}`) {
		t.Fatalf("skeleton hint not applied:\n%s", uiTree)
	}
	if strings.Index(uiTree, `"Acquisition"`) > strings.Index(uiTree, `"Parameters"`) {
		t.Fatalf("skeleton groups should come first:\n%s", uiTree)
	}

	header := readOutput(t, root, "demo", "migrated", "demoDetector.h")
	for _, want := range []string{
		"#include \"demoDetectorParamSet.h\"\n#include \"baseDriver.h\"\n",
		"demoDetector(demoDetectorParamSet* paramSet, const char *portName);",
		"#define FIRST_DEMO_PARAM paramSet->FIRST_DEMODETECTORPARAMSET_PARAM",
		"demoDetectorParamSet* paramSet;",
	} {
		if !strings.Contains(header, want) {
			t.Fatalf("migrated header missing %q:\n%s", want, header)
		}
	}
	if strings.Contains(header, "DemoGainString") || strings.Contains(header, "int DemoGain;") {
		t.Fatalf("migrated header kept per-parameter declarations:\n%s", header)
	}

	impl := readOutput(t, root, "demo", "migrated", "demoDetector.cpp")
	for _, want := range []string{
		"if (function == paramSet->DemoGain) {",
		"setIntegerParam(paramSet->BaseAcquire, 1);",
		"demoDetector::demoDetector(demoDetectorParamSet* paramSet, const char *portName)",
		"baseDriver(static_cast<baseDriverParamSet*>(paramSet), portName)",
		"new demoDetector(paramSet, portName);",
	} {
		if !strings.Contains(impl, want) {
			t.Fatalf("migrated impl missing %q:\n%s", want, impl)
		}
	}
	if strings.Contains(impl, "createParam") {
		t.Fatalf("registration calls survived:\n%s", impl)
	}

	// fact tables satisfy their contract
	fv, err := validator.NewFactsValidator()
	if err != nil {
		t.Fatalf("NewFactsValidator: %v", err)
	}
	tables := facts.BuildTables(report.Facts())
	if err := fv.Validate(tables); err != nil {
		t.Fatalf("fact tables fail their contract: %v", err)
	}
	if len(tables.Modules) != 4 || len(tables.Declares) != 4 {
		t.Fatalf("unexpected table sizes: %d modules, %d declares", len(tables.Modules), len(tables.Declares))
	}

	assertTiming(t, filepath.Join(root, "timing.jsonl"))

	prom, err := os.ReadFile(filepath.Join(root, "metrics.prom"))
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, want := range []string{
		`paramgen_modules_total{status="failed"} 2`,
		`paramgen_modules_total{status="ok"} 2`,
		`paramgen_parameters_total 5`,
	} {
		if !strings.Contains(string(prom), want) {
			t.Fatalf("metrics missing %q:\n%s", want, prom)
		}
	}
}

func assertTiming(t *testing.T, path string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read timing file: %v", err)
	}
	var foundScan, foundTotal bool
	for _, line := range bytes.Split(bytes.TrimSpace(raw), []byte("\n")) {
		var ev timingEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			t.Fatalf("parse timing event: %v", err)
		}
		if ev.Kind == "module" && ev.Stage == StageScan && ev.Module == "demo" {
			foundScan = true
		}
		if ev.Kind == "batch" && ev.Stage == "total" {
			foundTotal = true
		}
	}
	if !foundScan || !foundTotal {
		t.Fatalf("expected scan and total timing events")
	}
}

func TestRunSelectedModuleDryRun(t *testing.T) {
	root := copyProject(t)
	p := newPipeline(t, loadProject(t, root))
	p.Modules = []string{"demo"}
	p.DryRun = true

	report, err := p.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Outcomes) != 1 || report.Outcomes[0].Module != "demo" {
		t.Fatalf("expected only demo in the report, got %d outcome(s)", len(report.Outcomes))
	}
	// the base was still processed, so the minimal list excludes its names
	if got := report.Outcomes[0].Minimal.Names(); !cmp.Equal(got, []string{"DemoGain", "DemoArmed"}) {
		t.Fatalf("minimal=%v", got)
	}
	if _, ok := report.Outcomes[0].Artifact(config.ArtifactRegistry); !ok {
		t.Fatalf("dry run should still generate artifacts in memory")
	}
	if _, err := os.Stat(filepath.Join(root, "out")); !os.IsNotExist(err) {
		t.Fatalf("dry run wrote output: %v", err)
	}

	p.Modules = []string{"missing"}
	if _, err := p.Run(context.Background(), root); err == nil {
		t.Fatalf("expected an error for an unknown module")
	}
}

func TestRunArtifactSelection(t *testing.T) {
	root := copyProject(t)
	cfg := loadProject(t, root)
	cfg.Modules[0].Artifacts = []string{config.ArtifactUITree}
	cfg.Output.Artifacts = []string{config.ArtifactRegistry, config.ArtifactModule}
	p := newPipeline(t, cfg)
	p.DryRun = true

	report, err := p.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	kinds := func(o *Outcome) []string {
		var out []string
		for _, a := range o.Artifacts {
			out = append(out, a.Kind+":"+a.Path)
		}
		return out
	}
	if diff := cmp.Diff([]string{"uitree:base.pvi.json"}, kinds(report.Outcome("base"))); diff != "" {
		t.Fatalf("base artifacts (-want +got):\n%s", diff)
	}
	want := []string{
		"registry:demoDetectorParamSet.h",
		"module:migrated/demoDetector.h",
		"module:migrated/demoDetector.cpp",
	}
	if diff := cmp.Diff(want, kinds(report.Outcome("demo"))); diff != "" {
		t.Fatalf("demo artifacts (-want +got):\n%s", diff)
	}
}

func TestProcessModuleMismatchBlocksMinimalOnly(t *testing.T) {
	dir := t.TempDir()
	header := filepath.Join(dir, "x.h")
	src := `class x : public asynPortDriver {
public:
    x() {
        this->add("GAIN", asynParamInt32, &Gain);
        this->add("MODE", asynParamInt32, &Mode);
    }
};
`
	if err := os.WriteFile(header, []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.Output.Artifacts = []string{config.ArtifactRegistry, config.ArtifactMinimal}
	p := newPipeline(t, cfg)

	inherited := param.List{{Name: "Gain", ExternalKey: "GAIN", Type: param.Float64, DeclOrder: 0}}
	o := p.ProcessModule(context.Background(), config.ModuleEntry{Name: "x", Header: header}, inherited)

	if o.Status != StatusPartial {
		t.Fatalf("status=%s diags=%v", o.Status, o.Diagnostics)
	}
	if len(o.Diagnostics.OfKind(diag.InheritedParameterMismatch)) != 1 {
		t.Fatalf("expected one mismatch, got %v", o.Diagnostics)
	}
	if _, ok := o.Artifact(config.ArtifactRegistry); !ok {
		t.Fatalf("registry should still be emitted")
	}
	if _, ok := o.Artifact(config.ArtifactMinimal); ok {
		t.Fatalf("minimal registry should be withheld")
	}
}

func TestProcessModuleMissingInput(t *testing.T) {
	p := newPipeline(t, config.DefaultConfig())
	o := p.ProcessModule(context.Background(), config.ModuleEntry{
		Name:     "gone",
		Header:   filepath.Join(t.TempDir(), "gone.h"),
		Skeleton: filepath.Join(t.TempDir(), "gone.yaml"),
	}, nil)
	if o.Status != StatusFailed {
		t.Fatalf("status=%s", o.Status)
	}
	if got := len(o.Diagnostics.OfKind(diag.InputUnavailable)); got != 2 {
		t.Fatalf("expected header and skeleton to be reported, got %v", o.Diagnostics)
	}
}
