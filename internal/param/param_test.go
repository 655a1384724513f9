package param

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTypeTag(t *testing.T) {
	tests := []struct {
		in      string
		want    TypeTag
		wantErr bool
	}{
		{"Int32", Int32, false},
		{"asynParamFloat64", Float64, false},
		{" asynParamOctet ", Octet, false},
		{"asynParamUInt32Digital", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTypeTag(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseTypeTag(%q) err=%v, wantErr=%v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseTypeTag(%q)=%v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAccessLabel(t *testing.T) {
	tests := []struct {
		p    Parameter
		want string
	}{
		{Parameter{Access: ReadOnly}, LabelReadback},
		{Parameter{Access: WriteOnly}, LabelSetting},
		{Parameter{Access: WriteOnly, Momentary: true}, LabelAction},
		{Parameter{Access: ReadWrite}, LabelSetting},
		{Parameter{Access: ReadWrite, Momentary: true}, LabelSetting},
	}
	for _, tt := range tests {
		if got := tt.p.AccessLabel(); got != tt.want {
			t.Fatalf("AccessLabel(%v momentary=%v)=%s, want %s", tt.p.Access, tt.p.Momentary, got, tt.want)
		}
	}
}

func TestListValidate(t *testing.T) {
	ok := List{{Name: "A", DeclOrder: 0}, {Name: "B", DeclOrder: 2}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dup := List{{Name: "A", DeclOrder: 0}, {Name: "A", DeclOrder: 1}}
	if err := dup.Validate(); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	unordered := List{{Name: "A", DeclOrder: 1}, {Name: "B", DeclOrder: 1}}
	if err := unordered.Validate(); err == nil {
		t.Fatalf("expected ordering error")
	}
}

func TestRenameCanonical(t *testing.T) {
	table := RenameTable{
		{Legacy: "B_old", Canonical: "B"},
		{Legacy: "B_older", Canonical: "B_old"},
		{Legacy: "X", Canonical: "Y"},
		{Legacy: "Y", Canonical: "X"},
	}
	if got := table.Canonical("B_older"); got != "B" {
		t.Fatalf("Canonical(B_older)=%s, want B", got)
	}
	if got := table.Canonical("A"); got != "A" {
		t.Fatalf("Canonical(A)=%s, want A", got)
	}
	if got := table.Canonical("X"); got != "Y" {
		t.Fatalf("Canonical(X)=%s, want Y", got)
	}
}

func TestLoadListAssignsOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "base.yaml")
	content := `parameters:
  - name: Acquire
    external_key: ACQUIRE
    type: asynParamInt32
    access: ReadWrite
    flag: true
  - name: Gain
    external_key: GAIN
    type: Float64
    access: WriteOnly
    group: Settings
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := LoadList(path)
	if err != nil {
		t.Fatalf("LoadList: %v", err)
	}
	want := List{
		{Name: "Acquire", ExternalKey: "ACQUIRE", Type: Int32, Access: ReadWrite, DeclOrder: 0, Flag: true},
		{Name: "Gain", ExternalKey: "GAIN", Type: Float64, Access: WriteOnly, Group: "Settings", DeclOrder: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("LoadList mismatch (-want +got):\n%s", diff)
	}

	out := filepath.Join(dir, "out.yaml")
	if err := SaveList(out, got); err != nil {
		t.Fatalf("SaveList: %v", err)
	}
	again, err := LoadList(out)
	if err != nil {
		t.Fatalf("LoadList(saved): %v", err)
	}
	if diff := cmp.Diff(got, again); diff != "" {
		t.Fatalf("saved list mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadListRequiresShape(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing type", "parameters:\n  - name: Gain\n    external_key: GAIN\n    access: ReadWrite\n"},
		{"missing access", "parameters:\n  - name: Gain\n    external_key: GAIN\n    type: Float64\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "base.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := LoadList(path); err == nil {
				t.Fatal("expected an error for an entry without an explicit shape")
			}
		})
	}
}

func TestModuleInherited(t *testing.T) {
	root := &Module{Name: "asyn", Params: List{{Name: "PortName"}}}
	ad := &Module{Name: "ADDriver", Params: List{{Name: "Acquire"}, {Name: "PortName"}}, Base: root}
	det := &Module{Name: "pilatus", Base: ad}
	got := det.Inherited().Names()
	want := []string{"Acquire", "PortName"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Inherited mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryNaming(t *testing.T) {
	if got := RegistryClass("pilatusDetector"); got != "pilatusDetectorParamSet" {
		t.Fatalf("RegistryClass=%s", got)
	}
	if got := ParentRegistryClass("asynPortDriver"); got != "asynParamSet" {
		t.Fatalf("ParentRegistryClass(asynPortDriver)=%s", got)
	}
	if got := BoundaryConstant("pilatusDetectorParamSet"); got != "FIRST_PILATUSDETECTORPARAMSET_PARAM" {
		t.Fatalf("BoundaryConstant=%s", got)
	}
}
