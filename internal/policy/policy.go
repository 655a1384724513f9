package policy

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-policy-agent/opa/rego"

	"github.com/robert-at-pretension-io/paramgen/internal/diag"
	"github.com/robert-at-pretension-io/paramgen/internal/param"
)

//go:embed rules/*.rego
var rulesFS embed.FS

// Engine evaluates the lint rules against a module's parameter list
type Engine struct {
	queries map[string]rego.PreparedEvalQuery
}

// Violation represents a policy violation
type Violation struct {
	Rule      string `json:"rule"`
	Severity  string `json:"severity"`
	Name      string `json:"name"`
	DeclOrder int    `json:"decl_order"`
	Message   string `json:"message"`
}

// Result contains the evaluation results
type Result struct {
	Violations []Violation
	Summary    Summary
}

// Summary provides aggregate counts
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// Input is the data structure passed to OPA
type Input struct {
	Module     string            `json:"module"`
	Severities map[string]string `json:"severities"`
	Parameters []Parameter       `json:"parameters"`
}

// Parameter mirrors param.Parameter with string enums
type Parameter struct {
	Name        string `json:"name"`
	ExternalKey string `json:"external_key"`
	Type        string `json:"type"`
	Access      string `json:"access"`
	Group       string `json:"group"`
	DeclOrder   int    `json:"decl_order"`
}

// NewInput converts a parameter list into policy input
func NewInput(module string, list param.List, severities map[string]string) Input {
	in := Input{Module: module, Severities: severities, Parameters: []Parameter{}}
	if in.Severities == nil {
		in.Severities = map[string]string{}
	}
	for _, p := range list {
		in.Parameters = append(in.Parameters, Parameter{
			Name:        p.Name,
			ExternalKey: p.ExternalKey,
			Type:        p.Type.String(),
			Access:      p.Access.String(),
			Group:       p.Group,
			DeclOrder:   p.DeclOrder,
		})
	}
	return in
}

// New creates an engine with the built-in rules
func New() (*Engine, error) {
	return NewFromDir("")
}

// NewFromDir creates an engine with the built-in rules plus every .rego file
// in policyDir. Extra files must use package paramgen.lint and add to
// violations.
func NewFromDir(policyDir string) (*Engine, error) {
	var modules []func(*rego.Rego)

	builtin, err := rulesFS.ReadDir("rules")
	if err != nil {
		return nil, fmt.Errorf("reading built-in rules: %w", err)
	}
	for _, f := range builtin {
		name := "rules/" + f.Name()
		content, err := rulesFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		modules = append(modules, rego.Module(name, string(content)))
	}

	if policyDir != "" {
		files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("finding policy files: %w", err)
		}
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			modules = append(modules, rego.Module(f, string(content)))
		}
	}

	engine := &Engine{queries: make(map[string]rego.PreparedEvalQuery)}
	for key, q := range map[string]string{
		"violations": "data.paramgen.lint.all_violations",
		"summary":    "data.paramgen.lint.summary",
	} {
		opts := append(append([]func(*rego.Rego){}, modules...), rego.Query(q))
		query, err := rego.New(opts...).PrepareForEval(context.Background())
		if err != nil {
			return nil, fmt.Errorf("preparing %s query: %w", key, err)
		}
		engine.queries[key] = query
	}
	return engine, nil
}

// Evaluate runs the policies against the input data
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Result, error) {
	inputMap, err := structToMap(input)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	result := &Result{}

	rs, err := e.queries["violations"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if violations, ok := rs[0].Expressions[0].Value.([]interface{}); ok {
			for _, v := range violations {
				vmap, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				result.Violations = append(result.Violations, Violation{
					Rule:      getString(vmap, "rule"),
					Severity:  getString(vmap, "severity"),
					Name:      getString(vmap, "name"),
					DeclOrder: getInt(vmap, "decl_order"),
					Message:   getString(vmap, "message"),
				})
			}
		}
	}

	rs, err = e.queries["summary"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating summary: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if smap, ok := rs[0].Expressions[0].Value.(map[string]interface{}); ok {
			result.Summary = Summary{
				TotalViolations: getInt(smap, "total_violations"),
				Errors:          getInt(smap, "errors"),
				Warnings:        getInt(smap, "warnings"),
				Info:            getInt(smap, "info"),
			}
		}
	}

	return result, nil
}

// Diagnostics converts violations into PolicyViolation diagnostics
func (r *Result) Diagnostics(module string) diag.List {
	var out diag.List
	for _, v := range r.Violations {
		d := diag.Warnf(diag.PolicyViolation, module, v.Name, v.DeclOrder, "%s: %s", v.Rule, v.Message)
		d.Severity = v.Severity
		out = append(out, d)
	}
	return out
}

// Helper functions
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}
