package param

import (
	"fmt"
	"strings"
)

// TypeTag is the runtime value kind of a parameter
type TypeTag int

const (
	Int32 TypeTag = iota
	Float64
	Octet
)

var typeTagNames = [...]string{"Int32", "Float64", "Octet"}

func (t TypeTag) String() string {
	if int(t) < len(typeTagNames) {
		return typeTagNames[t]
	}
	return fmt.Sprintf("TypeTag(%d)", int(t))
}

// AsynName is the spelling used by the driver runtime, e.g. asynParamInt32
func (t TypeTag) AsynName() string {
	return "asynParam" + t.String()
}

// ParseTypeTag accepts both "Int32" and "asynParamInt32"
func ParseTypeTag(s string) (TypeTag, error) {
	name := strings.TrimPrefix(strings.TrimSpace(s), "asynParam")
	for i, n := range typeTagNames {
		if n == name {
			return TypeTag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown parameter type %q", s)
}

func (t TypeTag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TypeTag) UnmarshalText(b []byte) error {
	v, err := ParseTypeTag(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// AccessMode says whether a parameter is read, written or both
type AccessMode int

const (
	ReadOnly AccessMode = iota
	WriteOnly
	ReadWrite
)

var accessModeNames = [...]string{"ReadOnly", "WriteOnly", "ReadWrite"}

func (a AccessMode) String() string {
	if int(a) < len(accessModeNames) {
		return accessModeNames[a]
	}
	return fmt.Sprintf("AccessMode(%d)", int(a))
}

func ParseAccessMode(s string) (AccessMode, error) {
	for i, n := range accessModeNames {
		if strings.EqualFold(n, strings.TrimSpace(s)) {
			return AccessMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown access mode %q", s)
}

func (a AccessMode) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AccessMode) UnmarshalText(b []byte) error {
	v, err := ParseAccessMode(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Access labels written next to generated handle members
const (
	LabelSetting  = "Setting"
	LabelReadback = "Readback"
	LabelAction   = "Action"
)

// ReadbackSuffix is appended to the external key to form the read-back key
const ReadbackSuffix = "_RBV"

// Parameter is one controllable or observable quantity of a driver module
type Parameter struct {
	Name        string     `json:"name" yaml:"name"`
	ExternalKey string     `json:"external_key" yaml:"external_key"`
	Type        TypeTag    `json:"type" yaml:"type"`
	Access      AccessMode `json:"access" yaml:"access"`
	Group       string     `json:"group,omitempty" yaml:"group,omitempty"`
	DeclOrder   int        `json:"decl_order" yaml:"decl_order"`

	// Widget context. A flag is a boolean-like Int32, choices close an Int32
	// over an enumeration, momentary marks a write that triggers an action,
	// progress marks a Float64 read-back in [0,1].
	Flag      bool     `json:"flag,omitempty" yaml:"flag,omitempty"`
	Choices   []string `json:"choices,omitempty" yaml:"choices,omitempty"`
	Momentary bool     `json:"momentary,omitempty" yaml:"momentary,omitempty"`
	Progress  bool     `json:"progress,omitempty" yaml:"progress,omitempty"`
}

// WriteKey is the external key used for writes
func (p Parameter) WriteKey() string {
	return p.ExternalKey
}

// ReadKey is the external key used for read-back values
func (p Parameter) ReadKey() string {
	return p.ExternalKey + ReadbackSuffix
}

// AccessLabel maps the access mode onto Setting, Readback or Action
func (p Parameter) AccessLabel() string {
	switch p.Access {
	case ReadOnly:
		return LabelReadback
	case WriteOnly:
		if p.Momentary {
			return LabelAction
		}
		return LabelSetting
	default:
		return LabelSetting
	}
}

// SameShape reports whether two parameters mean the same thing at
// different inheritance levels
func (p Parameter) SameShape(o Parameter) bool {
	return p.Type == o.Type && p.Access == o.Access
}

// BoundaryConstant names the exported constant marking the first handle of
// a registry class
func BoundaryConstant(class string) string {
	return "FIRST_" + strings.ToUpper(class) + "_PARAM"
}
