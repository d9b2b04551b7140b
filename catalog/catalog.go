// Package catalog holds the known equations and their declared constraints,
// and builds equation descriptors from them through an explicit registry.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/njchilds90/scrbench/constraint"
	"github.com/njchilds90/scrbench/equation"
	"github.com/njchilds90/scrbench/sampling"
	"github.com/njchilds90/scrbench/symbolic"
)

// SourceSRSDFeynman qualifies equations from the SRSD Feynman set.
const SourceSRSDFeynman = "srsd-feynman"

var (
	// ErrConfiguration reports a malformed catalog or an unsupported source.
	ErrConfiguration = errors.New("catalog: invalid configuration")
	// ErrNotFound reports an unknown equation name.
	ErrNotFound = errors.New("catalog: equation not found")
)

//go:embed equations.yaml
var equationsYAML []byte

//go:embed constraints.yaml
var constraintsYAML []byte

var validate = validator.New()

// VariableSpec declares one input and its sampling objective.
type VariableSpec struct {
	Name     string  `yaml:"name" json:"name" validate:"required"`
	Kind     string  `yaml:"kind" json:"kind" validate:"omitempty,oneof=uniform log-uniform integer"`
	Low      float64 `yaml:"low" json:"low"`
	High     float64 `yaml:"high" json:"high" validate:"gtfield=Low"`
	Negative bool    `yaml:"negative,omitempty" json:"negative,omitempty"`
	Positive bool    `yaml:"positive,omitempty" json:"positive,omitempty"`
}

// Entry is one equation record.
type Entry struct {
	Name       string         `yaml:"name" json:"name" validate:"required"`
	Source     string         `yaml:"source" json:"source" validate:"required"`
	Expression string         `yaml:"expression" json:"expression" validate:"required"`
	Output     string         `yaml:"output" json:"output" validate:"required"`
	Variables  []VariableSpec `yaml:"variables" json:"variables" validate:"min=1,dive"`
}

type equationsFile struct {
	Equations []Entry `yaml:"equations"`
}

type constraintsFile struct {
	Equations []struct {
		Equation    string                  `yaml:"equation"`
		Constraints []constraint.Constraint `yaml:"constraints"`
	} `yaml:"equations"`
}

// Builder constructs an equation descriptor.
type Builder func(opts ...equation.Option) (*equation.Equation, error)

// Catalog maps equation names to their records, constraints and builders.
type Catalog struct {
	mu          sync.RWMutex
	entries     map[string]Entry
	constraints map[string][]constraint.Constraint
	builders    map[string]Builder
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(equationsYAML, constraintsYAML)
	})
	return defaultCatalog, defaultErr
}

// Load parses and validates equation and constraint records.
func Load(equations, constraints []byte) (*Catalog, error) {
	var ef equationsFile
	if err := yaml.Unmarshal(equations, &ef); err != nil {
		return nil, fmt.Errorf("%w: equations: %w", ErrConfiguration, err)
	}
	var cf constraintsFile
	if err := yaml.Unmarshal(constraints, &cf); err != nil {
		return nil, fmt.Errorf("%w: constraints: %w", ErrConfiguration, err)
	}

	c := &Catalog{
		entries:     make(map[string]Entry, len(ef.Equations)),
		constraints: make(map[string][]constraint.Constraint, len(cf.Equations)),
		builders:    make(map[string]Builder, len(ef.Equations)),
	}
	for i, e := range ef.Equations {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("%w: equation %d (%s): %w", ErrConfiguration, i, e.Name, err)
		}
		if _, dup := c.entries[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate equation %s", ErrConfiguration, e.Name)
		}
		c.entries[e.Name] = e
		c.builders[e.Name] = entryBuilder(e)
	}
	for _, group := range cf.Equations {
		entry, ok := c.entries[group.Equation]
		if !ok {
			return nil, fmt.Errorf("%w: constraints for unknown equation %s", ErrConfiguration, group.Equation)
		}
		cs, err := resolveConstraints(entry, group.Constraints)
		if err != nil {
			return nil, err
		}
		c.constraints[entry.Name] = cs
	}
	return c, nil
}

// resolveConstraints fills display names and default domains from the
// equation and validates each record against it.
func resolveConstraints(e Entry, cs []constraint.Constraint) ([]constraint.Constraint, error) {
	canonical := make([]string, len(e.Variables))
	defaults := make([]sampling.Range, len(e.Variables))
	for i, v := range e.Variables {
		obj, err := sampling.New(v.Kind, v.Low, v.High, v.Negative)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: variable %s: %w", ErrConfiguration, e.Name, v.Name, err)
		}
		canonical[i] = fmt.Sprintf("x%d", i)
		low, high := obj.Bounds()
		defaults[i] = sampling.Range{Name: canonical[i], Low: low, High: high}
	}

	out := make([]constraint.Constraint, len(cs))
	seen := map[string]bool{}
	for i, c := range cs {
		if len(c.Domain) == 0 {
			c.Domain = slices.Clone(defaults)
		}
		if len(c.DisplayVars) == 0 {
			for _, v := range c.Vars {
				idx := slices.Index(canonical, v)
				if idx < 0 {
					return nil, fmt.Errorf("%w: %s: constraint %s names unknown variable %q",
						ErrConfiguration, e.Name, c.ID, v)
				}
				c.DisplayVars = append(c.DisplayVars, e.Variables[idx].Name)
			}
		}
		if err := validate.Struct(c); err != nil {
			return nil, fmt.Errorf("%w: %s: constraint %s: %w", ErrConfiguration, e.Name, c.ID, err)
		}
		if len(c.Domain) != len(e.Variables) {
			return nil, fmt.Errorf("%w: %s: constraint %s has %d domain ranges for %d variables",
				ErrConfiguration, e.Name, c.ID, len(c.Domain), len(e.Variables))
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("%w: %s: duplicate constraint id %s", ErrConfiguration, e.Name, c.ID)
		}
		seen[c.ID] = true
		out[i] = c
	}
	return out, nil
}

func entryBuilder(e Entry) Builder {
	return func(opts ...equation.Option) (*equation.Equation, error) {
		names := make([]string, len(e.Variables))
		objectives := make([]sampling.Objective, len(e.Variables))
		for i, v := range e.Variables {
			names[i] = v.Name
			obj, err := sampling.New(v.Kind, v.Low, v.High, v.Negative)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: variable %s: %w", ErrConfiguration, e.Name, v.Name, err)
			}
			objectives[i] = obj
		}
		expr, err := symbolic.Parse(e.Expression, symbolic.WithSymbols(names...))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, e.Name, err)
		}
		base := []equation.Option{
			equation.WithName(e.Name),
			equation.WithOutputName(e.Output),
			equation.WithVariableOrder(names...),
		}
		for _, v := range e.Variables {
			if v.Positive {
				base = append(base, equation.WithPositive(v.Name))
			}
		}
		return equation.FromExpression(expr, objectives, append(base, opts...)...)
	}
}

// Register adds or replaces an equation built by b. Constraints may be nil.
func (c *Catalog) Register(e Entry, b Builder, cs []constraint.Constraint) error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfiguration, e.Name, err)
	}
	if b == nil {
		b = entryBuilder(e)
	}
	resolved, err := resolveConstraints(e, cs)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Name] = e
	c.builders[e.Name] = b
	c.constraints[e.Name] = resolved
	return nil
}

// Names lists every registered equation, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.entries))
	for name := range c.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Entry returns the record for name.
func (c *Catalog) Entry(name string) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

// sourced returns the record for name if its source is supported.
func (c *Catalog) sourced(name string) (Entry, error) {
	e, err := c.Entry(name)
	if err != nil {
		return Entry{}, err
	}
	if e.Source != SourceSRSDFeynman {
		return Entry{}, fmt.Errorf("%w: %s: unsupported source %q", ErrConfiguration, name, e.Source)
	}
	return e, nil
}

// RawExpression returns the expression text in display names.
func (c *Catalog) RawExpression(name string) (string, error) {
	e, err := c.sourced(name)
	return e.Expression, err
}

// VariableNames returns the display names in variable order.
func (c *Catalog) VariableNames(name string) ([]string, error) {
	e, err := c.sourced(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(e.Variables))
	for i, v := range e.Variables {
		out[i] = v.Name
	}
	return out, nil
}

// OutputName returns the output display name.
func (c *Catalog) OutputName(name string) (string, error) {
	e, err := c.sourced(name)
	return e.Output, err
}

// Constraints returns the declared constraints of name in catalog order.
func (c *Catalog) Constraints(name string) ([]constraint.Constraint, error) {
	if _, err := c.sourced(name); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.constraints[name]), nil
}

// Equation builds the descriptor registered under name.
func (c *Catalog) Equation(name string, opts ...equation.Option) (*equation.Equation, error) {
	c.mu.RLock()
	b, ok := c.builders[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return b(opts...)
}
