package scanner

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/robert-at-pretension-io/paramgen/internal/diag"
	"github.com/robert-at-pretension-io/paramgen/internal/param"
)

const legacyHeader = `#include "ADDriver.h"

#define DemoGainString      "GAIN"
#define DemoArmedString     "ARMED"
#define DemoModeString      "MODE"

class epicsShareClass demoDetector : public ADDriver {
public:
    demoDetector(const char *portName, int maxSizeX);
protected:
    int DemoGain;
    #define FIRST_DEMO_PARAM DemoGain
    int DemoArmed;
    int DemoMode;
private:
    int imagesRemaining;
};
`

const legacyImpl = `#include "demoDetector.h"

demoDetector::demoDetector(const char *portName, int maxSizeX)
    : ADDriver(portName, 1, 0, 0)
{
    createParam(DemoArmedString, asynParamInt32, &DemoArmed);
    createParam(DemoGainString, asynParamFloat64, &DemoGain);
    // createParam(DemoOldString, asynParamInt32, &DemoOld);
    createParam(DemoModeString, asynParamInt32, &DemoMode);
}
`

func TestScanLegacyMacroMember(t *testing.T) {
	res, diags := Scan("demo", Source{HeaderPath: "demo.h", Header: legacyHeader, ImplPath: "demo.cpp", Impl: legacyImpl})
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	want := param.List{
		{Name: "DemoArmed", ExternalKey: "ARMED", Type: param.Int32, Access: param.WriteOnly, DeclOrder: 0},
		{Name: "DemoGain", ExternalKey: "GAIN", Type: param.Float64, Access: param.WriteOnly, DeclOrder: 1},
		{Name: "DemoMode", ExternalKey: "MODE", Type: param.Int32, Access: param.WriteOnly, DeclOrder: 2},
	}
	if diff := cmp.Diff(want, res.Params); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
	if res.Class != "demoDetector" || res.Parent != "ADDriver" {
		t.Fatalf("class=%q parent=%q", res.Class, res.Parent)
	}
	wantBoundary := &Boundary{Macro: "FIRST_DEMO_PARAM", Target: "DemoGain", File: "demo.h", Line: 12}
	if diff := cmp.Diff(wantBoundary, res.Boundary); diff != "" {
		t.Fatalf("boundary mismatch (-want +got):\n%s", diff)
	}
	for _, name := range []string{"DemoArmed", "DemoGain", "DemoMode"} {
		if res.Origins[name] != IdiomMacroMember {
			t.Fatalf("origin of %s = %q", name, res.Origins[name])
		}
	}
}

func TestScanInlineAnnotated(t *testing.T) {
	header := `class DemoParameters {
public:
    DemoParameters(asynPortDriver *parent);
    /* Group: Acquisition */
    int Exposure;  /* asynParamFloat64 Setting */
    int Trigger;  /* asynParamInt32 Action */
    /* Group: Status */
    int Armed;  /* asynParamInt32 Readback */
};
`
	impl := `DemoParameters::DemoParameters(asynPortDriver *parent) {
    parent->createParam("Exposure", asynParamFloat64, &Exposure);
    parent->createParam("Trigger", asynParamInt32, &Trigger);
    parent->createParam("Armed", asynParamInt32, &Armed);
}
`
	res, diags := Scan("demo", Source{Header: header, Impl: impl})
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	want := param.List{
		{Name: "Exposure", ExternalKey: "Exposure", Type: param.Float64, Access: param.ReadWrite, Group: "Acquisition", DeclOrder: 0},
		{Name: "Trigger", ExternalKey: "Trigger", Type: param.Int32, Access: param.WriteOnly, Group: "Acquisition", DeclOrder: 1, Momentary: true},
		{Name: "Armed", ExternalKey: "Armed", Type: param.Int32, Access: param.ReadOnly, Group: "Status", DeclOrder: 2},
	}
	if diff := cmp.Diff(want, res.Params); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
	if res.Origins["Armed"] != IdiomInline {
		t.Fatalf("origin of Armed = %q", res.Origins["Armed"])
	}
}

func TestScanReadbackFolding(t *testing.T) {
	src := `class X : public asynPortDriver {
public:
    X() {
        this->add("GAIN", asynParamFloat64, &Gain);
        this->add("GAIN_RBV", asynParamFloat64, &GainRbv);
        this->add("TEMP_RBV", asynParamFloat64, &Temperature);
        this->add("RESET", asynParamInt32, &Reset);
    }
};
`
	res, diags := Scan("x", Source{Header: src})
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	want := param.List{
		{Name: "Gain", ExternalKey: "GAIN", Type: param.Float64, Access: param.ReadWrite, DeclOrder: 0},
		{Name: "Temperature", ExternalKey: "TEMP", Type: param.Float64, Access: param.ReadOnly, DeclOrder: 1},
		{Name: "Reset", ExternalKey: "RESET", Type: param.Int32, Access: param.WriteOnly, DeclOrder: 2},
	}
	if diff := cmp.Diff(want, res.Params); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
	if res.Origins["Gain"] != IdiomRegistration {
		t.Fatalf("origin of Gain = %q", res.Origins["Gain"])
	}
	if _, ok := res.Origins["GainRbv"]; ok {
		t.Fatalf("folded read-back handle kept an origin")
	}
}

func TestScanFailures(t *testing.T) {
	tests := []struct {
		name   string
		header string
		impl   string
		kind   diag.Kind
	}{
		{
			name: "unregistered member",
			header: `#define AString "A"
#define BString "B"
class X : public asynPortDriver {
    int A;
    int B;
};`,
			impl: `X::X() { createParam(AString, asynParamInt32, &A); }`,
			kind: diag.UnregisteredParameter,
		},
		{
			name:   "duplicate name",
			header: `class X { X() { this->add("A", asynParamInt32, &A); this->add("A2", asynParamInt32, &A); } };`,
			kind:   diag.DuplicateParameterName,
		},
		{
			name:   "undefined key macro",
			header: `class X { X() { createParam(MissingString, asynParamInt32, &A); } };`,
			kind:   diag.MalformedDeclaration,
		},
		{
			name:   "unknown type",
			header: `class X { X() { createParam("A", asynParamUInt32Digital, &A); } };`,
			kind:   diag.MalformedDeclaration,
		},
		{
			name:   "handle is not an address",
			header: `class X { X() { registerParam("A", asynParamInt32, A); } };`,
			kind:   diag.MalformedDeclaration,
		},
		{
			name:   "no declarations",
			header: `class X { int counter; };`,
			kind:   diag.MalformedDeclaration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, diags := Scan("x", Source{HeaderPath: "x.h", Header: tt.header, ImplPath: "x.cpp", Impl: tt.impl})
			if !diags.HasFatal() {
				t.Fatalf("expected fatal diagnostic, got %v", diags)
			}
			if len(diags.OfKind(tt.kind)) == 0 {
				t.Fatalf("expected %s, got %v", tt.kind, diags)
			}
			if len(res.Params) != 0 {
				t.Fatalf("expected no parameters on failure, got %v", res.Params.Names())
			}
			for _, d := range diags {
				if d.Module != "x" || d.Message == "" {
					t.Fatalf("diagnostic lacks module or message: %+v", d)
				}
			}
		})
	}
}

func TestScanIgnoresUnrelatedAddCalls(t *testing.T) {
	src := `class X {
    X() {
        list.add(item);
        this->add("A", asynParamInt32, &A);
        /* createParam(BString, asynParamInt32, &B); */
    }
};`
	res, diags := Scan("x", Source{Header: src})
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if got := res.Params.Names(); !cmp.Equal(got, []string{"A"}) {
		t.Fatalf("names=%v", got)
	}
}

func TestSplitArgs(t *testing.T) {
	got := splitArgs(`"a,b", asynParamInt32, &(this->X)`)
	want := []string{`"a,b"`, "asynParamInt32", "&(this->X)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("splitArgs mismatch (-want +got):\n%s", diff)
	}
}
