// Package definitions reads and writes filter definition documents.
//
// A document lists filters with their rule definitions:
//
//	filters:
//	  - name: news
//	    description: published news items
//	    parent: base
//	    legacy_authtype: 4
//	    rules:
//	      - name: sys_filterByFolder
//	        params:
//	          sys_folderid: "10,12"
package definitions

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/solatis/itemfilter/internal/filter"
	"github.com/solatis/itemfilter/internal/types"
	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a filter set.
type Document struct {
	Filters []FilterSpec `yaml:"filters"`
}

// FilterSpec is the YAML form of one filter.
type FilterSpec struct {
	Name           string     `yaml:"name"`
	Description    string     `yaml:"description,omitempty"`
	Parent         string     `yaml:"parent,omitempty"`
	LegacyAuthtype *int       `yaml:"legacy_authtype,omitempty"`
	Rules          []RuleSpec `yaml:"rules,omitempty"`
}

// RuleSpec is the YAML form of one rule definition.
type RuleSpec struct {
	Name   string            `yaml:"name"`
	Params map[string]string `yaml:"params,omitempty"`
}

// Load reads a definition document from path.
func Load(path string) ([]*filter.Filter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open definitions: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Parse decodes a definition document held in memory.
func Parse(data []byte) ([]*filter.Filter, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one document from r. Unknown keys are rejected.
// An empty stream yields no filters.
func Decode(r io.Reader) ([]*filter.Filter, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: parse definitions: %v", types.ErrInvalidArgument, err)
	}
	return doc.Build()
}

// Build converts the document to filters, checking names are unique.
func (d Document) Build() ([]*filter.Filter, error) {
	seen := make(map[string]bool, len(d.Filters))
	out := make([]*filter.Filter, 0, len(d.Filters))
	for i, spec := range d.Filters {
		f, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("filters[%d]: %w", i, err)
		}
		if seen[f.Name()] {
			return nil, fmt.Errorf("filters[%d]: %w: %s", i, types.ErrFilterExists, f.Name())
		}
		seen[f.Name()] = true
		out = append(out, f)
	}
	return out, nil
}

// Build converts one filter spec.
func (s FilterSpec) Build() (*filter.Filter, error) {
	f, err := filter.NewFilter(s.Name, s.Description)
	if err != nil {
		return nil, err
	}
	f.Parent = s.Parent
	if s.LegacyAuthtype != nil {
		v := *s.LegacyAuthtype
		f.LegacyAuthtype = &v
	}
	for j, rs := range s.Rules {
		rd, err := filter.NewRuleDef(rs.Name, types.Params(rs.Params))
		if err != nil {
			return nil, fmt.Errorf("%s: rules[%d]: %w", s.Name, j, err)
		}
		if err := f.AddRule(rd); err != nil {
			return nil, fmt.Errorf("%s: rules[%d]: %w", s.Name, j, err)
		}
	}
	return f, nil
}

// FromFilters builds the document form of filters.
func FromFilters(filters []*filter.Filter) Document {
	doc := Document{Filters: make([]FilterSpec, 0, len(filters))}
	for _, f := range filters {
		spec := FilterSpec{
			Name:        f.Name(),
			Description: f.Description,
			Parent:      f.Parent,
		}
		if f.LegacyAuthtype != nil {
			v := *f.LegacyAuthtype
			spec.LegacyAuthtype = &v
		}
		for _, rd := range f.Rules() {
			rs := RuleSpec{Name: rd.Name()}
			if p := rd.Params(); len(p) > 0 {
				rs.Params = map[string]string(p)
			}
			spec.Rules = append(spec.Rules, rs)
		}
		doc.Filters = append(doc.Filters, spec)
	}
	return doc
}

// Encode writes filters as a definition document.
func Encode(w io.Writer, filters []*filter.Filter) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromFilters(filters)); err != nil {
		return fmt.Errorf("encode definitions: %w", err)
	}
	return enc.Close()
}
