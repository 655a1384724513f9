package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact names accepted in output.artifacts and per-module overrides
const (
	ArtifactRegistry = "registry"
	ArtifactMinimal  = "minimal"
	ArtifactInline   = "inline"
	ArtifactUITree   = "uitree"
	ArtifactModule   = "module"
)

// AllArtifacts lists every artifact in emission order
var AllArtifacts = []string{ArtifactRegistry, ArtifactMinimal, ArtifactInline, ArtifactUITree, ArtifactModule}

// Config is the top-level configuration for paramgen
type Config struct {
	// Modules is an explicit list of driver modules
	Modules []ModuleEntry `json:"modules,omitempty"`

	// Discover finds modules by header pattern in addition to Modules
	Discover DiscoverConfig `json:"discover,omitempty"`

	// Rewrite controls how references are migrated
	Rewrite RewriteConfig `json:"rewrite,omitempty"`

	// Output controls what is written where
	Output OutputConfig `json:"output,omitempty"`

	// Lint contains linting rule configuration
	Lint LintConfig `json:"lint,omitempty"`

	// Analysis contains batch options
	Analysis AnalysisConfig `json:"analysis,omitempty"`
}

// ModuleEntry is one driver module. Paths are relative to the project root
// unless absolute.
type ModuleEntry struct {
	Name   string `json:"name"`
	Header string `json:"header"`
	Impl   string `json:"impl,omitempty"`

	// Class and Parent override what the scanner finds in the header
	Class  string `json:"class,omitempty"`
	Parent string `json:"parent,omitempty"`

	// Label prefixes the embedded tree constant; defaults to the class
	Label string `json:"label,omitempty"`

	// Base names another module whose parameters this one inherits
	Base string `json:"base,omitempty"`

	// BaseFile is a YAML parameter list inherited in addition to Base
	BaseFile string `json:"baseFile,omitempty"`

	// Renames is a YAML rename table
	Renames string `json:"renames,omitempty"`

	// Skeleton is a YAML UI-tree skeleton
	Skeleton string `json:"skeleton,omitempty"`

	// Artifacts overrides output.artifacts for this module
	Artifacts []string `json:"artifacts,omitempty"`
}

// DiscoverConfig holds glob patterns, matched against slash-separated paths
// relative to the root. A matching .h with a sibling .cpp becomes a module.
type DiscoverConfig struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// RewriteConfig controls the identifier rewrite
type RewriteConfig struct {
	// Indirection is the registry member name
	Indirection string `json:"indirection,omitempty"`

	// Accessor is "->" for a pointer member or "." for a value
	Accessor string `json:"accessor,omitempty"`

	// KeepRegistrations leaves createParam calls in the migrated source
	KeepRegistrations bool `json:"keepRegistrations,omitempty"`
}

// OutputConfig controls artifact output
type OutputConfig struct {
	// Dir is the output directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty"`

	// Artifacts lists the artifacts produced for every module
	Artifacts []string `json:"artifacts,omitempty"`

	// IndentJSON pretty-prints the standalone UI tree
	IndentJSON bool `json:"indentJSON,omitempty"`
}

// LintConfig contains linting configuration
type LintConfig struct {
	// Enabled turns policy evaluation on
	Enabled *bool `json:"enabled,omitempty"`

	// Rules maps rule names to severity: "off", "info", "warning", "error"
	Rules map[string]string `json:"rules,omitempty"`

	// PolicyDir holds extra .rego files
	PolicyDir string `json:"policyDir,omitempty"`
}

// AnalysisConfig contains batch options
type AnalysisConfig struct {
	// MaxParallelModules limits concurrent module processing (0 = auto)
	MaxParallelModules int `json:"maxParallelModules,omitempty"`

	// Timing is a JSONL file receiving per-stage timings
	Timing string `json:"timing,omitempty"`

	// Metrics is a Prometheus textfile written after each run
	Metrics string `json:"metrics,omitempty"`
}

var defaultInclude = []string{"*.h", "**/*.h"}

var defaultExclude = []string{"**ParamSet.h", "**Parameters.h"}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Discover: DiscoverConfig{
			Include: append([]string(nil), defaultInclude...),
			Exclude: append([]string(nil), defaultExclude...),
		},
		Rewrite: RewriteConfig{
			Indirection: "paramSet",
			Accessor:    "->",
		},
		Output: OutputConfig{
			Dir:        "generated",
			Artifacts:  append([]string(nil), AllArtifacts...),
			IndentJSON: true,
		},
		Lint: LintConfig{
			Enabled: boolPtr(true),
			Rules:   map[string]string{},
		},
		Analysis: AnalysisConfig{
			MaxParallelModules: 0, // auto
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./paramgen.json (current working directory)
//  2. ./.paramgen.json (current working directory)
//  3. <rootPath>/paramgen.json (if different from cwd)
//  4. <rootPath>/.paramgen.json
//  5. ~/.config/paramgen/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "paramgen.json"),
		filepath.Join(cwd, ".paramgen.json"),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, "paramgen.json"),
				filepath.Join(rootPath, ".paramgen.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "paramgen", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if len(c.Modules) == 0 && len(c.Discover.Include) == 0 {
		c.Discover.Include = append([]string(nil), defaultInclude...)
		if len(c.Discover.Exclude) == 0 {
			c.Discover.Exclude = append([]string(nil), defaultExclude...)
		}
	}
	if c.Rewrite.Indirection == "" {
		c.Rewrite.Indirection = "paramSet"
	}
	if c.Rewrite.Accessor == "" {
		c.Rewrite.Accessor = "->"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "generated"
	}
	if len(c.Output.Artifacts) == 0 {
		c.Output.Artifacts = append([]string(nil), AllArtifacts...)
	}
	if c.Lint.Enabled == nil {
		c.Lint.Enabled = boolPtr(true)
	}
	if c.Lint.Rules == nil {
		c.Lint.Rules = make(map[string]string)
	}
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	names := make(map[string]bool, len(c.Modules))
	for i, m := range c.Modules {
		if m.Name == "" {
			return fmt.Errorf("module %d has no name", i)
		}
		if names[m.Name] {
			return fmt.Errorf("module %q listed twice", m.Name)
		}
		names[m.Name] = true
		if m.Header == "" {
			return fmt.Errorf("module %q has no header", m.Name)
		}
		if err := checkArtifacts(m.Artifacts); err != nil {
			return fmt.Errorf("module %q: %w", m.Name, err)
		}
	}
	for _, m := range c.Modules {
		if m.Base != "" && !names[m.Base] {
			return fmt.Errorf("module %q: base %q is not a configured module", m.Name, m.Base)
		}
	}
	if err := checkArtifacts(c.Output.Artifacts); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if a := c.Rewrite.Accessor; a != "" && a != "->" && a != "." {
		return fmt.Errorf("rewrite accessor must be \"->\" or \".\", got %q", a)
	}
	for rule, sev := range c.Lint.Rules {
		switch sev {
		case "off", "info", "warning", "error":
		default:
			return fmt.Errorf("lint rule %s: unknown severity %q", rule, sev)
		}
	}
	return nil
}

func checkArtifacts(list []string) error {
	for _, a := range list {
		known := false
		for _, k := range AllArtifacts {
			known = known || a == k
		}
		if !known {
			return fmt.Errorf("unknown artifact %q", a)
		}
	}
	return nil
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}

// LintEnabled reports whether policy evaluation runs
func (c *Config) LintEnabled() bool {
	return c.Lint.Enabled == nil || *c.Lint.Enabled
}

// ArtifactsFor returns the artifacts requested for a module
func (c *Config) ArtifactsFor(m ModuleEntry) []string {
	if len(m.Artifacts) > 0 {
		return m.Artifacts
	}
	return c.Output.Artifacts
}

// Wants reports whether artifact is requested for a module
func (c *Config) Wants(m ModuleEntry, artifact string) bool {
	for _, a := range c.ArtifactsFor(m) {
		if a == artifact {
			return true
		}
	}
	return false
}
