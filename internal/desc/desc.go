// Package desc loads declarative frame graph descriptions from YAML or
// TOML and builds them into a framegraph.Graph. Passes built from a
// description open their attachments and record nothing else, which is
// enough to plan, validate and chart a frame without any renderer.
package desc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a description file.
type Format uint8

const (
	YAML Format = iota
	TOML
)

func (f Format) String() string {
	if f == TOML {
		return "TOML"
	}
	return "YAML"
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return 0, fmt.Errorf("desc: %s: unknown extension, want .yaml, .yml or .toml", path)
	}
}

// Graph is a whole description: resources first, then passes in
// declaration order.
type Graph struct {
	Name      string     `yaml:"name" toml:"name"`
	Resources []Resource `yaml:"resources" toml:"resources"`
	Passes    []Pass     `yaml:"passes" toml:"passes"`
}

// Resource describes one graph resource. Kind is color, depth or buffer;
// Lifetime is transient (default), external or imported.
type Resource struct {
	Name     string   `yaml:"name" toml:"name"`
	Kind     string   `yaml:"kind" toml:"kind"`
	Lifetime string   `yaml:"lifetime,omitempty" toml:"lifetime,omitempty"`
	Format   string   `yaml:"format,omitempty" toml:"format,omitempty"`
	Width    uint32   `yaml:"width,omitempty" toml:"width,omitempty"`
	Height   uint32   `yaml:"height,omitempty" toml:"height,omitempty"`
	Samples  uint32   `yaml:"samples,omitempty" toml:"samples,omitempty"`
	Mips     uint32   `yaml:"mips,omitempty" toml:"mips,omitempty"`
	Size     uint64   `yaml:"size,omitempty" toml:"size,omitempty"`
	Usage    []string `yaml:"usage,omitempty" toml:"usage,omitempty"`

	// Clear is an RGBA color for color resources.
	Clear      []float64 `yaml:"clear,omitempty" toml:"clear,omitempty"`
	ClearDepth *float32  `yaml:"clear_depth,omitempty" toml:"clear_depth,omitempty"`
}

// Pass describes one declarative pass. Type is render (default) or
// compute.
type Pass struct {
	Name       string   `yaml:"name" toml:"name"`
	Type       string   `yaml:"type,omitempty" toml:"type,omitempty"`
	Reads      []string `yaml:"reads,omitempty" toml:"reads,omitempty"`
	Writes     []string `yaml:"writes,omitempty" toml:"writes,omitempty"`
	ReadWrites []string `yaml:"read_writes,omitempty" toml:"read_writes,omitempty"`
	Disabled   bool     `yaml:"disabled,omitempty" toml:"disabled,omitempty"`
}

// Load reads and validates a description file.
func Load(path string) (*Graph, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("desc: %w", err)
	}
	g, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Parse decodes and validates a description. Unknown fields are errors.
func Parse(data []byte, format Format) (*Graph, error) {
	var g Graph
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&g); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("desc: yaml: %w", err)
		}
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&g); err != nil {
			var se *toml.StrictMissingError
			if errors.As(err, &se) {
				keys := make([]string, len(se.Errors))
				for i, e := range se.Errors {
					keys[i] = strings.Join(e.Key(), ".")
				}
				return nil, fmt.Errorf("desc: toml: unknown fields %s", strings.Join(keys, ", "))
			}
			var de *toml.DecodeError
			if errors.As(err, &de) {
				row, col := de.Position()
				return nil, fmt.Errorf("desc: toml: line %d column %d: %w", row, col, err)
			}
			return nil, fmt.Errorf("desc: toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("desc: unknown format %d", format)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Encode writes g in the given format.
func (g *Graph) Encode(w io.Writer, format Format) error {
	switch format {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(g); err != nil {
			return fmt.Errorf("desc: yaml: %w", err)
		}
		return enc.Close()
	case TOML:
		if err := toml.NewEncoder(w).Encode(g); err != nil {
			return fmt.Errorf("desc: toml: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("desc: unknown format %d", format)
	}
}

// Validate checks names and references. Resource attributes are checked
// when the description is built, against the framegraph's own rules.
func (g *Graph) Validate() error {
	var errs []error
	res := make(map[string]bool, len(g.Resources))
	for i, r := range g.Resources {
		switch {
		case r.Name == "":
			errs = append(errs, fmt.Errorf("resource %d: missing name", i))
		case res[r.Name]:
			errs = append(errs, fmt.Errorf("resource %q: declared twice", r.Name))
		}
		res[r.Name] = true
	}

	passes := make(map[string]bool, len(g.Passes))
	for i, p := range g.Passes {
		switch {
		case p.Name == "":
			errs = append(errs, fmt.Errorf("pass %d: missing name", i))
		case passes[p.Name]:
			errs = append(errs, fmt.Errorf("pass %q: declared twice", p.Name))
		}
		passes[p.Name] = true
		for _, list := range [][]string{p.Reads, p.Writes, p.ReadWrites} {
			for _, name := range list {
				if !res[name] {
					errs = append(errs, fmt.Errorf("pass %q: unknown resource %q", p.Name, name))
				}
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("desc: %w", err)
	}
	return nil
}
