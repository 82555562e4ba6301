package rule

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads advanced rule-sets from YAML (or JSON) documents.
type Loader struct {
	fs fs.FS // named presets
}

// NewLoader creates a loader with the built-in presets.
func NewLoader() *Loader {
	return &Loader{
		fs: builtinPresetsFS,
	}
}

// NewLoaderWithFS creates a loader whose presets live under presets/ in fsys.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs: fsys,
	}
}

// Parse decodes and validates a rule-set document. Empty input is a valid
// empty rule-set.
func Parse(data []byte) Result {
	if len(bytes.TrimSpace(data)) == 0 {
		return valid(nil)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return invalid("failed to parse rules: %v", err)
	}
	return Validate(unwrap(doc))
}

// LoadFile reads and validates a rule-set from a file path.
func (l *Loader) LoadFile(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return Parse(data), nil
}

// Preset loads a named preset, e.g. "office".
func (l *Loader) Preset(name string) (Result, error) {
	data, err := fs.ReadFile(l.fs, path.Join("presets", name+".yml"))
	if err != nil {
		return Result{}, fmt.Errorf("unknown rule preset %q: %w", name, err)
	}
	return Parse(data), nil
}

// Presets lists the available preset names in sorted order.
func (l *Loader) Presets() ([]string, error) {
	var names []string

	err := fs.WalkDir(l.fs, "presets", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".yml" {
			return nil
		}
		names = append(names, strings.TrimSuffix(path.Base(p), ".yml"))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)
	return names, nil
}
