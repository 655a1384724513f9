package validator

// =============================================================================
// VALIDATOR PHILOSOPHY: CRASH EARLY, CRASH LOUD
// =============================================================================
//
// The CUE schemas are the contract between paramgen and whatever consumes
// its output: the UI tree is read back by the driver runtime and by screen
// generators, the fact tables by query tools.
//
// Without validation, a renamed key or a widget on the wrong side of a
// signal ships silently and the screen is simply missing a field.
//
// With validation:
// - the artifact is refused with the exact path that is wrong
// - "parameters.0.children.1.read_pv: field not allowed" says what broke
//
// WHEN VALIDATION FAILS:
// 1. DON'T relax the schema to make the error go away
// 2. DO trace back: is this the tree builder, the widget table or the emitter?
// 3. DO fix at the source and keep the schema strict
// =============================================================================

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed ui_tree_schema.cue facts_schema.cue
var schemaFS embed.FS

// contract is one compiled schema file and the definition data must satisfy
type contract struct {
	ctx        *cue.Context
	schema     cue.Value
	definition string
}

func compile(file, definition string) (*contract, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema %s: %w", file, err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", file, schema.Err())
	}
	if def := schema.LookupPath(cue.ParsePath(definition)); def.Err() != nil {
		return nil, fmt.Errorf("looking up %s definition: %w", definition, def.Err())
	}

	return &contract{ctx: ctx, schema: schema, definition: definition}, nil
}

func (c *contract) unify(jsonBytes []byte) (cue.Value, error) {
	dataValue := c.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}
	def := c.schema.LookupPath(cue.ParsePath(c.definition))
	return def.Unify(dataValue), nil
}

func (c *contract) validateJSON(jsonBytes []byte) error {
	unified, err := c.unify(jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s validation failed: %w", c.definition, err)
	}
	return nil
}

func (c *contract) errorList(jsonBytes []byte) []string {
	unified, err := c.unify(jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// TreeValidator checks serialized UI trees against #ParamTree
type TreeValidator struct {
	c *contract
}

// NewTreeValidator creates a validator for the JSON UI tree
func NewTreeValidator() (*TreeValidator, error) {
	c, err := compile("ui_tree_schema.cue", "#ParamTree")
	if err != nil {
		return nil, err
	}
	return &TreeValidator{c: c}, nil
}

// Validate checks one serialized tree. Returns nil if valid, or an error
// naming the offending paths.
func (v *TreeValidator) Validate(jsonBytes []byte) error {
	return v.c.validateJSON(jsonBytes)
}

// ValidationErrors returns every violation as a separate message
func (v *TreeValidator) ValidationErrors(jsonBytes []byte) []string {
	return v.c.errorList(jsonBytes)
}

// FactsValidator validates relational fact tables against the facts schema.
type FactsValidator struct {
	c *contract
}

// NewFactsValidator creates a validator for relational fact tables.
func NewFactsValidator() (*FactsValidator, error) {
	c, err := compile("facts_schema.cue", "#FactTables")
	if err != nil {
		return nil, err
	}
	return &FactsValidator{c: c}, nil
}

// Validate checks that the fact tables conform to the facts schema.
func (v *FactsValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling facts to JSON: %w", err)
	}
	return v.c.validateJSON(jsonBytes)
}
