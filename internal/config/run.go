package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"eb-evaluation-lab/internal/cost"
	"eb-evaluation-lab/internal/domain"
	"eb-evaluation-lab/internal/governance"
	"eb-evaluation-lab/internal/readiness"
	"eb-evaluation-lab/internal/selection"
)

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// RunConfig is the explicit configuration of one evaluation run.
// Nothing here has an implicit default: Default returns the demo values.
type RunConfig struct {
	Name       string                `yaml:"name" validate:"required"`
	Reduction  domain.Reduction      `yaml:"reduction" validate:"required,oneof=mean sum normalized"`
	Cost       domain.CostSpec       `yaml:"cost"`
	Sweep      SweepConfig           `yaml:"sweep"`
	Readiness  *domain.ReadinessSpec `yaml:"readiness,omitempty"`
	Hierarchy  HierarchyConfig       `yaml:"hierarchy"`
	Baseline   string                `yaml:"baseline" validate:"required,oneof=rmse mae"`
	Governance *governance.Policy    `yaml:"governance,omitempty"`
	Serving    ServingConfig         `yaml:"serving,omitempty"`
	Workers    int                   `yaml:"workers" validate:"gte=0"`
}

// ServingConfig names the model served when the gate rejects a selection.
// Empty means rejected selections are served anyway, flagged as unadmitted.
type ServingConfig struct {
	BaselineModel string `yaml:"baseline_model,omitempty"`
}

// SweepConfig describes the cost-ratio grid. Explicit Ratios win over the generated grid;
// with neither, the run has no sweep.
type SweepConfig struct {
	Ratios []float64 `yaml:"ratios,omitempty" validate:"omitempty,dive,gte=0"`
	Start  float64   `yaml:"start" validate:"gte=0"`
	Stop   float64   `yaml:"stop" validate:"gte=0"`
	Steps  int       `yaml:"steps" validate:"gte=0"`
	Log    bool      `yaml:"log"`
}

// HierarchyConfig selects the aggregation rule. Custom reducers are code, not config.
type HierarchyConfig struct {
	Rule domain.AggregationRule `yaml:"rule" validate:"required,oneof=majority cost_weighted"`
}

// Default returns the demo configuration: cu/co = 2/1, mean reduction,
// additive linear readiness, τ = 2 with HR@τ >= 0.70, seasonal naive fallback.
func Default() *RunConfig {
	policy := governance.DefaultPolicy()
	return &RunConfig{
		Name:      "eb-demo",
		Reduction: domain.ReductionMean,
		Cost:      domain.CostSpec{Underforecast: 2, Overforecast: 1},
		Sweep:     SweepConfig{Start: 0.25, Stop: 8, Steps: 16, Log: true},
		Readiness: &domain.ReadinessSpec{
			ThresholdMs: 24 * 3_600_000,
			Penalty:     domain.PenaltyLinear,
			Rate:        0.01,
			Combine:     domain.CombineAdditive,
		},
		Hierarchy:  HierarchyConfig{Rule: domain.RuleCostWeighted},
		Baseline:   "rmse",
		Governance: &policy,
		Serving:    ServingConfig{BaselineModel: "seasonal_naive"},
	}
}

// Load reads and validates a run configuration from a YAML file.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML run configuration. Unknown fields are rejected.
func Parse(data []byte) (*RunConfig, error) {
	var cfg RunConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode run config: %v", domain.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and the domain rules of every section.
func (c *RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if err := cost.Validate(c.Cost); err != nil {
		return fmt.Errorf("%w: cost: %w", domain.ErrInvalidConfig, err)
	}
	if err := readiness.Validate(c.Readiness); err != nil {
		return fmt.Errorf("%w: readiness: %w", domain.ErrInvalidConfig, err)
	}
	if _, err := c.Sweep.Grid(); err != nil {
		return err
	}
	return nil
}

// Grid returns the sweep ratios in ascending order, or nil when no sweep is configured.
func (s SweepConfig) Grid() ([]float64, error) {
	if len(s.Ratios) > 0 {
		out := make([]float64, len(s.Ratios))
		copy(out, s.Ratios)
		sort.Float64s(out)
		return out, nil
	}
	if s.Steps == 0 {
		return nil, nil
	}
	return selection.Ratios(s.Start, s.Stop, s.Steps, s.Log)
}

// Fingerprint returns a canonical YAML rendering of the configuration.
// Equal configurations produce equal fingerprints.
func (c *RunConfig) Fingerprint() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return c.Name
	}
	return string(data)
}
