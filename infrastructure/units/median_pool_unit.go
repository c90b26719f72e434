package units

import (
	"context"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-nns/internal/domain"
	"github.com/ahrav/go-nns/internal/ports"
)

var (
	_ ports.Unit        = (*MedianPoolUnit)(nil)
	_ domain.Aggregator = (*MedianPoolUnit)(nil)
)

// MedianPoolUnit combines the pairing scores of one repetition using the
// median. A single pairing that misbehaves (for example a near-constant
// channel with a tiny amplitude-derived tolerance) moves the median far less
// than it moves the mean.
//
// Example usage:
//
//	config := MedianPoolConfig{RequireAllScores: true}
//	unit, err := NewMedianPoolUnit("median_agg", config)
type MedianPoolUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains validated configuration parameters.
	// Immutable after unit creation to ensure thread safety.
	config MedianPoolConfig
}

// MedianPoolConfig defines the configuration parameters for the MedianPoolUnit.
type MedianPoolConfig struct {
	// RequireAllScores marks the repetition as failed when any pairing failed.
	RequireAllScores bool `yaml:"require_all_scores" json:"require_all_scores"`
}

// NewMedianPoolUnit creates a new MedianPoolUnit.
// Returns ErrEmptyUnitName if name is empty.
func NewMedianPoolUnit(name string, config MedianPoolConfig) (*MedianPoolUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &MedianPoolUnit{
		name:   name,
		config: config,
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *MedianPoolUnit) Name() string { return u.name }

// Execute aggregates domain.KeyPairingScores into domain.KeyRepetitionScore
// using the median of the successful pairing scores.
func (u *MedianPoolUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	return aggregateRepetition(state, u, u.config.RequireAllScores)
}

// calculateMedian returns the median of scores without reordering the input.
//
// Edge Cases:
//   - Single element returns that element
//   - Even count returns the mean of the two middle elements
//
// Time Complexity: O(n log n) due to sorting
func calculateMedian(scores []float64) float64 {
	sorted := slices.Clone(scores)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Aggregate implements domain.Aggregator by returning the median score.
//
// Error Conditions:
//   - domain.ErrNoScores: empty scores slice
//   - Invalid score error: NaN or Inf values detected
func (u *MedianPoolUnit) Aggregate(scores []float64) (float64, error) {
	if err := checkScores(scores); err != nil {
		return 0, err
	}
	return calculateMedian(scores), nil
}

// Validate verifies the unit is properly configured.
func (u *MedianPoolUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters deserializes YAML configuration into the unit's
// parameters. The unit's configuration remains unchanged on error.
func (u *MedianPoolUnit) UnmarshalParameters(params yaml.Node) error {
	var config MedianPoolConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}

	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}

	u.config = config
	return nil
}

// DefaultMedianPoolConfig tolerates failed pairings.
func DefaultMedianPoolConfig() MedianPoolConfig {
	return MedianPoolConfig{RequireAllScores: false}
}

// NewMedianPoolFromConfig creates a MedianPoolUnit from a configuration map.
func NewMedianPoolFromConfig(id string, config map[string]any) (ports.Unit, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cfg := DefaultMedianPoolConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewMedianPoolUnit(id, cfg)
}
