// Package catalog holds the reference data an analysis needs: clinics, the
// exam dictionary with its aliases, routines and profiles. A Catalog can be
// read from YAML, and the default one is embedded in the binary.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/nefron/examcheck/internal/model"
)

var (
	ErrRoutineNotFound = errors.New("routine not found")
	ErrProfileNotFound = errors.New("profile not found")
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog is the full reference data set.
type Catalog struct {
	Clinics  []string        `yaml:"clinics"`
	Exams    []model.Exam    `yaml:"exams"`
	Routines []model.Routine `yaml:"routines"`
	Profiles []model.Profile `yaml:"profiles"`
}

// Default returns a fresh copy of the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

// Validate checks the rule sets and the references between sections.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Exams))
	for _, e := range c.Exams {
		if e.Name == "" {
			return fmt.Errorf("exam with empty name")
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate exam %q", e.Name)
		}
		seen[e.Name] = true
	}
	routines := make(map[string]bool, len(c.Routines))
	for _, r := range c.Routines {
		if r.Name == "" {
			return fmt.Errorf("routine with empty name")
		}
		if err := r.Rules.Validate(); err != nil {
			return fmt.Errorf("routine %q: %w", r.Name, err)
		}
		routines[r.Name] = true
	}
	for _, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile with empty name")
		}
		if !routines[p.Routine] {
			return fmt.Errorf("profile %q: %w: %q", p.Name, ErrRoutineNotFound, p.Routine)
		}
	}
	return nil
}

// Marshal encodes the catalog as YAML.
func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ListExams returns the exam dictionary.
func (c *Catalog) ListExams(ctx context.Context) ([]model.Exam, error) {
	return c.Exams, nil
}

// ListClinics returns the clinic names.
func (c *Catalog) ListClinics(ctx context.Context) ([]string, error) {
	return c.Clinics, nil
}

// ListRoutines returns the routine names in sorted order.
func (c *Catalog) ListRoutines(ctx context.Context) ([]string, error) {
	names := make([]string, len(c.Routines))
	for i, r := range c.Routines {
		names[i] = r.Name
	}
	sort.Strings(names)
	return names, nil
}

// GetRoutine returns the routine called name.
func (c *Catalog) GetRoutine(ctx context.Context, name string) (*model.Routine, error) {
	for i := range c.Routines {
		if c.Routines[i].Name == name {
			r := c.Routines[i]
			return &r, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrRoutineNotFound, name)
}

// ListProfiles returns every profile.
func (c *Catalog) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	return c.Profiles, nil
}

// GetProfile returns the profile called name.
func (c *Catalog) GetProfile(ctx context.Context, name string) (*model.Profile, error) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			p := c.Profiles[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
}
