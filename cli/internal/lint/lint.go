// Package lint checks schema documents structurally before they reach an
// engine: YAML well-formedness, required keys, known field and rule kinds.
// The engine applies the same checks plus regex compilation at load time.
package lint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var fieldTypes = map[string]bool{
	"string": true, "int": true, "decimal": true,
	"bool": true, "date": true, "timestamp": true,
}

var ruleKinds = map[string]bool{
	"field-constraint": true, "cross-field": true, "cross-record": true,
}

var predicates = map[string]map[string]bool{
	"cross-field": {
		"sum_equals": true, "equals": true, "not_after": true,
		"non_negative": true, "required_together": true,
	},
	"cross-record": {
		"fields_agree": true, "sum_matches_total": true,
	},
}

type document struct {
	Kind    string `yaml:"kind"`
	Version int    `yaml:"version"`
	Fields  []struct {
		Name        string `yaml:"name"`
		Type        string `yaml:"type"`
		Constraints *struct {
			Pattern string `yaml:"pattern"`
		} `yaml:"constraints"`
	} `yaml:"fields"`
	Rules []struct {
		Name      string `yaml:"name"`
		Kind      string `yaml:"kind"`
		Predicate string `yaml:"predicate"`
	} `yaml:"rules"`
	ReconcileKey []string `yaml:"reconcile_key"`
}

// File lints one schema document file, returning every problem found.
func File(path string) []error {
	f, err := os.Open(path)
	if err != nil {
		return []error{err}
	}
	defer f.Close()

	var errs []error
	dec := yaml.NewDecoder(f)
	for i := 0; ; i++ {
		var doc document
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				break
			}
			errs = append(errs, fmt.Errorf("document %d: %w", i, err))
			break
		}
		for _, err := range check(&doc) {
			errs = append(errs, fmt.Errorf("document %d (%s): %w", i, doc.Kind, err))
		}
	}
	return errs
}

// Dir lints every .yaml/.yml file in a directory, keyed by filename.
func Dir(dir string) (map[string][]error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	out := make(map[string][]error)
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		out[name] = File(filepath.Join(dir, name))
	}
	return out, nil
}

func check(doc *document) []error {
	var errs []error
	if doc.Kind == "" {
		errs = append(errs, fmt.Errorf("kind is required"))
	}
	if doc.Version <= 0 {
		errs = append(errs, fmt.Errorf("version must be positive, got %d", doc.Version))
	}
	if len(doc.Fields) == 0 {
		errs = append(errs, fmt.Errorf("at least one field is required"))
	}

	fields := make(map[string]bool, len(doc.Fields))
	for _, f := range doc.Fields {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("field with empty name"))
			continue
		}
		if fields[f.Name] {
			errs = append(errs, fmt.Errorf("duplicate field %q", f.Name))
		}
		fields[f.Name] = true
		if !fieldTypes[f.Type] {
			errs = append(errs, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type))
		}
		if f.Constraints != nil && f.Constraints.Pattern != "" {
			if _, err := regexp.Compile(f.Constraints.Pattern); err != nil {
				errs = append(errs, fmt.Errorf("field %q: invalid pattern: %v", f.Name, err))
			}
		}
	}

	for _, r := range doc.Rules {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("rule with empty name"))
			continue
		}
		if !ruleKinds[r.Kind] {
			errs = append(errs, fmt.Errorf("rule %q: unknown kind %q", r.Name, r.Kind))
		}
		if known, ok := predicates[r.Kind]; ok && !known[r.Predicate] {
			errs = append(errs, fmt.Errorf("rule %q: unknown predicate %q", r.Name, r.Predicate))
		}
	}

	for _, key := range doc.ReconcileKey {
		if !fields[key] {
			errs = append(errs, fmt.Errorf("reconcile_key references unknown field %q", key))
		}
	}
	return errs
}
