package rewrite

import (
	"context"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/paramgen/internal/diag"
	"github.com/robert-at-pretension-io/paramgen/internal/param"
)

func params(names ...string) param.List {
	var l param.List
	for i, n := range names {
		l = append(l, param.Parameter{Name: n, ExternalKey: strings.ToUpper(n), DeclOrder: i})
	}
	return l
}

func rewrite(t *testing.T, opts Options, src string, list param.List) (Result, diag.List) {
	t.Helper()
	res, diags, err := New(opts).Rewrite(context.Background(), "demo", []byte(src), list)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	return res, diags
}

func TestRewriteShadowedScope(t *testing.T) {
	src := `int x = Threshold; void f(){ int Threshold = 5; return Threshold; }`
	want := `int x = paramSet.Threshold; void f(){ int Threshold = 5; return Threshold; }`
	res, diags := rewrite(t, Options{}, src, params("Threshold"))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if res.Source != want {
		t.Fatalf("got:\n%s\nwant:\n%s", res.Source, want)
	}
	if res.Qualified != 1 {
		t.Fatalf("Qualified=%d, want 1", res.Qualified)
	}
}

func TestRewriteScopes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "function parameter shadows",
			src:  "void g(int Gain) { Gain++; }\nvoid h() { Gain = 2; }\n",
			want: "void g(int Gain) { Gain++; }\nvoid h() { paramSet.Gain = 2; }\n",
		},
		{
			name: "inner block ends",
			src:  "void k() { { int Gain = 1; use(Gain); } use(Gain); }\n",
			want: "void k() { { int Gain = 1; use(Gain); } use(paramSet.Gain); }\n",
		},
		{
			name: "for loop variable",
			src:  "void k() { for (int Gain = 0; Gain < 3; Gain++) {} set(Gain); }\n",
			want: "void k() { for (int Gain = 0; Gain < 3; Gain++) {} set(paramSet.Gain); }\n",
		},
		{
			name: "lambda parameter",
			src:  "void k() { auto fn = [](int Gain) { return Gain; }; fn(Gain); }\n",
			want: "void k() { auto fn = [](int Gain) { return Gain; }; fn(paramSet.Gain); }\n",
		},
		{
			name: "qualified and literal uses stay",
			src:  "void m() { log(\"Gain\"); Foo::Gain = 2; obj.Gain = 3; }\n",
			want: "void m() { log(\"Gain\"); Foo::Gain = 2; obj.Gain = 3; }\n",
		},
		{
			name: "member access through this",
			src:  "void m() { this->Gain = 1; }\n",
			want: "void m() { this->paramSet.Gain = 1; }\n",
		},
		{
			name: "enumerator binds in the function",
			src:  "void k() { enum Mode { Gain, Other }; use(Gain); }\n",
			want: "void k() { enum Mode { Gain, Other }; use(Gain); }\n",
		},
		{
			name: "scoped enumerator stays qualified",
			src:  "void k() { enum class Mode { Gain }; use(Mode::Gain); set(Gain); }\n",
			want: "void k() { enum class Mode { Gain }; use(Mode::Gain); set(paramSet.Gain); }\n",
		},
		{
			name: "prototype parameters do not leak",
			src:  "void p(int Gain);\nvoid q() { set(Gain); }\n",
			want: "void p(int Gain);\nvoid q() { set(paramSet.Gain); }\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, diags := rewrite(t, Options{}, tt.src, params("Gain"))
			if diags.HasFatal() {
				t.Fatalf("unexpected fatal diagnostics: %v", diags)
			}
			if res.Source != tt.want {
				t.Fatalf("got:\n%s\nwant:\n%s", res.Source, tt.want)
			}
		})
	}
}

func TestRewriteFileScopeCollision(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"variable", "static int Gain = 3;\nvoid h() { set(Gain); }\n"},
		{"enumerator", "enum Mode { Gain, Other };\nvoid h() { use(Gain); }\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, diags := rewrite(t, Options{}, tt.src, params("Gain"))
			got := diags.OfKind(diag.UnresolvedReference)
			if len(got) != 1 || !got[0].Fatal() || got[0].Name != "Gain" || got[0].Line != 1 {
				t.Fatalf("expected one fatal UnresolvedReference on line 1, got %v", diags)
			}
			if res.Source != "" {
				t.Fatalf("expected no source on failure, got %q", res.Source)
			}
		})
	}
}

func TestRewriteWarnings(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		src  string
	}{
		{"macro body", Options{}, "#define USE_GAIN (Gain + 1)\n"},
		{"call position", Options{}, "void n() { Gain(); }\n"},
		{"foreign class", Options{Class: "demo"}, "void other::run() { Gain = 1; }\n"},
		{"lambda capture", Options{}, "void n() { auto f = [Gain]() { return Gain; }; }\n"},
		{"member call through this", Options{}, "void n() { this->Gain(); }\n"},
		{"member access in another class", Options{Class: "demo"}, "void other::run() { this->Gain = 1; }\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, diags := rewrite(t, tt.opts, tt.src, params("Gain"))
			w := diags.OfKind(diag.PossibleMissedReference)
			if len(w) == 0 || w[0].Fatal() {
				t.Fatalf("expected a PossibleMissedReference warning, got %v", diags)
			}
			if res.Source != tt.src {
				t.Fatalf("source changed:\n%s", res.Source)
			}
		})
	}
}

func TestRewriteOwningClassOnly(t *testing.T) {
	src := "void other::run() { Gain = 1; }\nvoid demo::run() { Gain = 1; }\n"
	want := "void other::run() { Gain = 1; }\nvoid demo::run() { paramSet->Gain = 1; }\n"
	res, _ := rewrite(t, Options{Class: "demo", Accessor: "->"}, src, params("Gain"))
	if res.Source != want {
		t.Fatalf("got:\n%s\nwant:\n%s", res.Source, want)
	}
}

func TestRewriteFactorySites(t *testing.T) {
	src := `void make(const char *a, const char *b)
{
    new demo(a);
    new demo(b);
    if (a)
        new demo(b);
}
`
	want := `void make(const char *a, const char *b)
{
    demoParamSet* paramSet = new demoParamSet;
    new demo(paramSet, a);
    paramSet = new demoParamSet;
    new demo(paramSet, b);
    if (a)
        new demo(b);
}
`
	opts := Options{Class: "demo", Accessor: "->", Registry: "demoParamSet", ParentRegistry: "asynParamSet"}
	res, diags := rewrite(t, opts, src, params("Gain"))
	if res.Source != want {
		t.Fatalf("got:\n%s\nwant:\n%s", res.Source, want)
	}
	if res.FactorySites != 2 {
		t.Errorf("FactorySites = %d, want 2", res.FactorySites)
	}
	if w := diags.OfKind(diag.PossibleMissedReference); len(w) != 1 || w[0].Line != 6 {
		t.Errorf("expected one warning for the unbraced site on line 6, got %v", diags)
	}
}

const legacyImpl = `#include "demoDetector.h"

asynStatus demoDetector::writeInt32(asynUser *pasynUser, epicsInt32 value)
{
    int function = pasynUser->reason;
    if (function == DemoArmed) {
        setIntegerParam(DemoArmed, value);
    } else if (function < FIRST_DEMO_PARAM) {
        ADDriver::writeInt32(pasynUser, value);
    }
    return asynSuccess;
}

demoDetector::demoDetector(const char *portName, int maxSizeX)
    : ADDriver(portName, 1, 0, 0)
{
    createParam(DemoArmedString, asynParamInt32, &DemoArmed);
    createParam(DemoGainString, asynParamFloat64, &DemoGain);
    setDoubleParam(DemoGain, 1.0);
}

extern "C" int demoDetectorConfig(const char *portName, int maxSizeX)
{
    new demoDetector(portName, maxSizeX);
    return asynSuccess;
}
`

func TestRewriteModuleMigration(t *testing.T) {
	opts := Options{
		Accessor:       "->",
		Class:          "demoDetector",
		Parent:         "ADDriver",
		Registry:       "demoDetectorParamSet",
		ParentRegistry: "ADDriverParamSet",
		Boundary:       "FIRST_DEMODETECTORPARAMSET_PARAM",
		File:           "demoDetector.cpp",
	}
	res, diags := rewrite(t, opts, legacyImpl, params("DemoArmed", "DemoGain"))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	for _, want := range []string{
		"if (function == paramSet->DemoArmed) {",
		"setIntegerParam(paramSet->DemoArmed, value);",
		"} else if (function < FIRST_DEMO_PARAM) {",
		"demoDetector::demoDetector(demoDetectorParamSet* paramSet, const char *portName, int maxSizeX)",
		": ADDriver(static_cast<ADDriverParamSet*>(paramSet), portName, 1, 0, 0),\n      paramSet(paramSet)\n{",
		"{\n    setDoubleParam(paramSet->DemoGain, 1.0);\n}",
		"    demoDetectorParamSet* paramSet = new demoDetectorParamSet;\n    new demoDetector(paramSet, portName, maxSizeX);",
	} {
		if !strings.Contains(res.Source, want) {
			t.Fatalf("missing %q in:\n%s", want, res.Source)
		}
	}
	if strings.Contains(res.Source, "createParam") {
		t.Fatalf("registration calls survived:\n%s", res.Source)
	}
	if res.RemovedCalls != 2 || !res.ConstructorThreaded || res.FactorySites != 1 {
		t.Fatalf("unexpected counters %+v", res)
	}
}

func TestRewriteBoundaryMacro(t *testing.T) {
	src := "#define FIRST_DEMO_PARAM DemoArmed\n"
	res, diags := rewrite(t, Options{Accessor: "->", Boundary: "FIRST_DEMOPARAMSET_PARAM"}, src, params("DemoArmed"))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	want := "#define FIRST_DEMO_PARAM paramSet->FIRST_DEMOPARAMSET_PARAM\n"
	if res.Source != want {
		t.Fatalf("got %q, want %q", res.Source, want)
	}
}

func TestRewriteConstructorWithoutInitializers(t *testing.T) {
	src := "demo::demo()\n{\n    set(Gain);\n}\n"
	opts := Options{Accessor: "->", Class: "demo", Registry: "demoParamSet", ParentRegistry: "asynParamSet"}
	res, _ := rewrite(t, opts, src, params("Gain"))
	want := "demo::demo(demoParamSet* paramSet)\n    : paramSet(paramSet)\n{\n    set(paramSet->Gain);\n}\n"
	if res.Source != want {
		t.Fatalf("got:\n%s\nwant:\n%s", res.Source, want)
	}
}

func TestApplyEditsOrdering(t *testing.T) {
	src := []byte("abc")
	got := applyEdits(src, []edit{
		{start: 1, end: 1, text: "X", seq: 0},
		{start: 1, end: 1, text: "Y", seq: 1},
		{start: 2, end: 3, text: "", seq: 2},
	})
	if got != "aXYb" {
		t.Fatalf("applyEdits=%q, want aXYb", got)
	}
}
