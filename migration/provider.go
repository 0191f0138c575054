package migration

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider is a source of migration plans.
type Provider interface {
	// Plans returns the plans from this source.
	Plans(ctx context.Context) ([]Plan, error)
}

// StaticProvider is a Provider that returns a fixed set of plans.
type StaticProvider []Plan

// Plans returns the plans in p.
func (p StaticProvider) Plans(context.Context) ([]Plan, error) {
	return p, nil
}

// FileExtensions is the set of file extensions that FileReader loads plans
// from.
var FileExtensions = []string{".yaml", ".yml", ".json"}

// FileReader is a Provider that reads plans from the files in a directory.
//
// Each file contains a list of plans under the "plans" key, in YAML or JSON.
// Files are read in lexical order. Files with other extensions and
// sub-directories are ignored.
type FileReader struct {
	// Dir is the directory that contains the plan files.
	Dir string
}

// file is the structure of a plan file.
type file struct {
	Plans []Plan `yaml:"plans"`
}

// Plans returns the plans from the files in r.Dir.
func (r FileReader) Plans(ctx context.Context) ([]Plan, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return nil, fmt.Errorf("unable to read migration plan directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var plans []Plan

	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if e.IsDir() || !isPlanFile(e.Name()) {
			continue
		}

		p, err := ReadFile(filepath.Join(r.Dir, e.Name()))
		if err != nil {
			return nil, err
		}

		plans = append(plans, p...)
	}

	return plans, nil
}

// ReadFile reads the plans from a single plan file.
func ReadFile(path string) ([]Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read migration plan file: %w", err)
	}

	plans, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return plans, nil
}

// Parse decodes the plans in the contents of a plan file.
func Parse(data []byte) ([]Plan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unable to decode migration plans: %w", err)
	}

	for i, p := range f.Plans {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid migration plan at index %d (%q): %w", i, p.Name, err)
		}
	}

	return f.Plans, nil
}

// isPlanFile returns true if name has one of the FileExtensions.
func isPlanFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))

	for _, x := range FileExtensions {
		if ext == x {
			return true
		}
	}

	return false
}
