package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-nns/internal/domain"
	"github.com/ahrav/go-nns/internal/ports"
)

var (
	_ ports.Unit        = (*ArithmeticMeanUnit)(nil)
	_ domain.Aggregator = (*ArithmeticMeanUnit)(nil)
)

// ArithmeticMeanUnit combines the pairing scores of one repetition into a
// single agreement score using the unweighted arithmetic mean.
//
// Mathematical Algorithm: Σscores / count over the pairings that scored
// successfully. The mean is commutative, so pairing order never changes
// the result.
//
// Performance: O(n) time complexity for n pairing scores with single-pass calculation.
//
// Precision: Uses IEEE 754 double-precision arithmetic with explicit NaN/Inf
// validation to ensure mathematical correctness and prevent invalid aggregations.
//
// Concurrency: Stateless and thread-safe for concurrent execution.
type ArithmeticMeanUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config ArithmeticMeanConfig
}

// ArithmeticMeanConfig controls how failed pairings affect the aggregate.
type ArithmeticMeanConfig struct {
	// RequireAllScores marks the repetition as failed when any pairing failed.
	// true: every configured pairing must contribute to the mean
	// false: failed pairings are dropped and the mean covers the rest
	RequireAllScores bool `yaml:"require_all_scores" json:"require_all_scores"`
}

// NewArithmeticMeanUnit creates a new ArithmeticMeanUnit.
// Returns ErrEmptyUnitName if name is empty.
func NewArithmeticMeanUnit(name string, config ArithmeticMeanConfig) (*ArithmeticMeanUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &ArithmeticMeanUnit{
		name:   name,
		config: config,
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *ArithmeticMeanUnit) Name() string { return u.name }

// Execute aggregates domain.KeyPairingScores into domain.KeyRepetitionScore.
//
// State requirements:
//   - domain.KeyPairingScores: results produced by NNSUnit
//   - domain.KeyCandidate, domain.KeyRepetitionIndex: optional, copied into the result
//
// The function is safe for concurrent execution and does not modify input state.
func (u *ArithmeticMeanUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	return aggregateRepetition(state, u, u.config.RequireAllScores)
}

// Aggregate implements domain.Aggregator by returning the arithmetic mean.
func (u *ArithmeticMeanUnit) Aggregate(scores []float64) (float64, error) {
	if err := checkScores(scores); err != nil {
		return 0, err
	}

	var sum float64
	for _, score := range scores {
		sum += score
	}
	return sum / float64(len(scores)), nil
}

// Validate verifies the unit is properly configured.
func (u *ArithmeticMeanUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	return nil
}

// UnmarshalParameters deserializes YAML configuration into the unit's
// parameters. The unit's configuration remains unchanged on error.
func (u *ArithmeticMeanUnit) UnmarshalParameters(params yaml.Node) error {
	var config ArithmeticMeanConfig

	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}

	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}

	u.config = config
	return nil
}

// DefaultArithmeticMeanConfig tolerates failed pairings.
func DefaultArithmeticMeanConfig() ArithmeticMeanConfig {
	return ArithmeticMeanConfig{
		RequireAllScores: false,
	}
}

// NewArithmeticMeanFromConfig creates an ArithmeticMeanUnit from a configuration map.
// This is the boundary adapter for YAML/JSON configuration.
func NewArithmeticMeanFromConfig(id string, config map[string]any) (ports.Unit, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	// Start with defaults, then overlay user config.
	cfg := DefaultArithmeticMeanConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewArithmeticMeanUnit(id, cfg)
}
