package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// ResolveModules returns the configured modules with absolute paths,
// followed by every discovered header/implementation pair that is not
// already configured. Discovered modules are sorted by header path.
func (c *Config) ResolveModules(rootPath string) ([]ModuleEntry, error) {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	var result []ModuleEntry
	seenHeader := make(map[string]bool)
	seenName := make(map[string]bool)

	for _, m := range c.Modules {
		m.Header = absPath(absRoot, m.Header)
		if m.Impl == "" {
			m.Impl = siblingImpl(m.Header)
		} else {
			m.Impl = absPath(absRoot, m.Impl)
		}
		m.BaseFile = absPath(absRoot, m.BaseFile)
		m.Renames = absPath(absRoot, m.Renames)
		m.Skeleton = absPath(absRoot, m.Skeleton)

		seenHeader[m.Header] = true
		seenName[m.Name] = true
		result = append(result, m)
	}

	found, err := c.discover(absRoot)
	if err != nil {
		return nil, err
	}
	for _, m := range found {
		if seenHeader[m.Header] {
			continue
		}
		// a discovered module never shadows a configured name
		if seenName[m.Name] {
			continue
		}
		seenName[m.Name] = true
		result = append(result, m)
	}

	return result, nil
}

// discover walks the root for headers matching the include patterns that
// have a same-stem .cpp next to them
func (c *Config) discover(absRoot string) ([]ModuleEntry, error) {
	if len(c.Discover.Include) == 0 {
		return nil, nil
	}
	include, err := compileAll(c.Discover.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(c.Discover.Exclude)
	if err != nil {
		return nil, err
	}

	outDir := ""
	if c.Output.Dir != "" {
		outDir = absPath(absRoot, c.Output.Dir)
	}

	var found []ModuleEntry
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if d.IsDir() {
			if path == outDir || (path != absRoot && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".h") {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !matchAny(include, rel) || matchAny(exclude, rel) {
			return nil
		}

		impl := siblingImpl(path)
		if impl == "" {
			return nil
		}
		found = append(found, ModuleEntry{
			Name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Header: path,
			Impl:   impl,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering modules: %w", err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Header < found[j].Header })
	return found, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// siblingImpl returns the .cpp next to header, or "" if there is none
func siblingImpl(header string) string {
	stem := strings.TrimSuffix(header, filepath.Ext(header))
	for _, ext := range []string{".cpp", ".cc", ".cxx"} {
		if info, err := os.Stat(stem + ext); err == nil && !info.IsDir() {
			return stem + ext
		}
	}
	return ""
}

func absPath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// FindModule returns the resolved module with the given name
func FindModule(modules []ModuleEntry, name string) (ModuleEntry, bool) {
	for _, m := range modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleEntry{}, false
}
