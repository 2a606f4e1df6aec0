package topopt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of one optimization run. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	Nelx    int     `yaml:"nelx" toml:"nelx"`       // Elements along x
	Nely    int     `yaml:"nely" toml:"nely"`       // Elements along y
	Volfrac float64 `yaml:"volfrac" toml:"volfrac"` // Target volume fraction
	Penal   float64 `yaml:"penal" toml:"penal"`     // SIMP penalization power
	Rmin    float64 `yaml:"rmin" toml:"rmin"`       // Filter radius in element widths
	MaxIter int     `yaml:"maxiter" toml:"maxiter"`
	Tolx    float64 `yaml:"tolx" toml:"tolx"` // Convergence threshold on max density change
	Emin    float64 `yaml:"emin" toml:"emin"` // Void stiffness floor
	E0      float64 `yaml:"e0" toml:"e0"`     // Solid Young's modulus
	Nu      float64 `yaml:"nu" toml:"nu"`     // Poisson ratio
	Move    float64 `yaml:"move" toml:"move"` // OC move limit per iteration

	SolverTol float64 `yaml:"solver_tol" toml:"solver_tol"`
	// SolverMaxIter caps PCG iterations; 0 selects max(2·ndof, 1000)
	SolverMaxIter int `yaml:"solver_maxiter" toml:"solver_maxiter"`
}

func DefaultConfig() Config {
	return Config{
		Nelx:          60,
		Nely:          20,
		Volfrac:       0.5,
		Penal:         3.0,
		Rmin:          1.5,
		MaxIter:       200,
		Tolx:          0.01,
		Emin:          1e-9,
		E0:            1.0,
		Nu:            0.3,
		Move:          0.2,
		SolverTol:     1e-8,
		SolverMaxIter: 0,
	}
}

// Validate reports the first offending field, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

	switch {
	case c.Nelx <= 0 || c.Nely <= 0:
		return bad("invalid dimensions nelx=%d, nely=%d", c.Nelx, c.Nely)
	case !finite(c.Volfrac) || c.Volfrac <= 0 || c.Volfrac > 1:
		return bad("volfrac %g must lie in (0, 1]", c.Volfrac)
	case !finite(c.Penal) || c.Penal < 1:
		return bad("penal %g must be at least 1", c.Penal)
	case !finite(c.Rmin) || c.Rmin < 0:
		return bad("rmin %g must be non-negative", c.Rmin)
	case c.MaxIter <= 0:
		return bad("maxiter %d must be positive", c.MaxIter)
	case !finite(c.Tolx) || c.Tolx <= 0:
		return bad("tolx %g must be positive", c.Tolx)
	case !finite(c.E0) || c.E0 <= 0:
		return bad("e0 %g must be positive", c.E0)
	case !finite(c.Emin) || c.Emin < 0 || c.Emin >= c.E0:
		return bad("emin %g must lie in [0, e0)", c.Emin)
	case !(c.Nu > -1 && c.Nu < 0.5):
		return bad("nu %g must lie in (-1, 0.5)", c.Nu)
	case !finite(c.Move) || c.Move <= 0 || c.Move > 1:
		return bad("move %g must lie in (0, 1]", c.Move)
	case !finite(c.SolverTol) || c.SolverTol <= 0:
		return bad("solver_tol %g must be positive", c.SolverTol)
	case c.SolverMaxIter < 0:
		return bad("solver_maxiter %d must be non-negative", c.SolverMaxIter)
	}
	return nil
}

func (c Config) NumElements() int { return c.Nelx * c.Nely }

// solverMaxIter resolves the PCG iteration cap for ndof unknowns.
func (c Config) solverMaxIter(ndof int) int {
	if c.SolverMaxIter > 0 {
		return c.SolverMaxIter
	}
	return max(2*ndof, 1000)
}

// Overrides is a partial Config: nil fields keep their current value.
type Overrides struct {
	Nelx          *int     `yaml:"nelx,omitempty"`
	Nely          *int     `yaml:"nely,omitempty"`
	Volfrac       *float64 `yaml:"volfrac,omitempty"`
	Penal         *float64 `yaml:"penal,omitempty"`
	Rmin          *float64 `yaml:"rmin,omitempty"`
	MaxIter       *int     `yaml:"maxiter,omitempty"`
	Tolx          *float64 `yaml:"tolx,omitempty"`
	Emin          *float64 `yaml:"emin,omitempty"`
	E0            *float64 `yaml:"e0,omitempty"`
	Nu            *float64 `yaml:"nu,omitempty"`
	Move          *float64 `yaml:"move,omitempty"`
	SolverTol     *float64 `yaml:"solver_tol,omitempty"`
	SolverMaxIter *int     `yaml:"solver_maxiter,omitempty"`
}

// WithOverrides returns a validated copy of c with the non-nil fields of o
// applied. c is never modified.
func (c Config) WithOverrides(o Overrides) (Config, error) {
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.Nelx, o.Nelx)
	set(&c.Nely, o.Nely)
	setF(&c.Volfrac, o.Volfrac)
	setF(&c.Penal, o.Penal)
	setF(&c.Rmin, o.Rmin)
	set(&c.MaxIter, o.MaxIter)
	setF(&c.Tolx, o.Tolx)
	setF(&c.Emin, o.Emin)
	setF(&c.E0, o.E0)
	setF(&c.Nu, o.Nu)
	setF(&c.Move, o.Move)
	setF(&c.SolverTol, o.SolverTol)
	set(&c.SolverMaxIter, o.SolverMaxIter)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Ptr is a convenience for filling Overrides literals.
func Ptr[T any](v T) *T { return &v }

// ParseConfig decodes YAML over DefaultConfig. Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseConfigTOML is ParseConfig for TOML input.
func ParseConfigTOML(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a configuration file. Files ending in .toml are parsed as
// TOML, anything else as YAML.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	parse := ParseConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		parse = ParseConfigTOML
	}
	cfg, err := parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
