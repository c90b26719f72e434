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
	_ ports.Unit        = (*MinPoolUnit)(nil)
	_ domain.Aggregator = (*MinPoolUnit)(nil)
)

// MinPoolUnit reports the worst pairing score of a repetition. It is the
// strictest aggregate: a repetition scores high only if every pairing does.
type MinPoolUnit struct {
	name   string
	config MinPoolConfig
}

// MinPoolConfig defines the configuration parameters for the MinPoolUnit.
type MinPoolConfig struct {
	// RequireAllScores marks the repetition as failed when any pairing failed.
	RequireAllScores bool `yaml:"require_all_scores" json:"require_all_scores"`
}

// NewMinPoolUnit creates a new MinPoolUnit.
func NewMinPoolUnit(name string, config MinPoolConfig) (*MinPoolUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	return &MinPoolUnit{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *MinPoolUnit) Name() string { return u.name }

// Execute aggregates domain.KeyPairingScores into domain.KeyRepetitionScore
// using the lowest successful pairing score.
func (u *MinPoolUnit) Execute(_ context.Context, state domain.State) (domain.State, error) {
	return aggregateRepetition(state, u, u.config.RequireAllScores)
}

// Aggregate implements domain.Aggregator by returning the minimum score.
func (u *MinPoolUnit) Aggregate(scores []float64) (float64, error) {
	if err := checkScores(scores); err != nil {
		return 0, err
	}
	return slices.Min(scores), nil
}

// Validate verifies the unit is properly configured.
func (u *MinPoolUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters deserializes YAML configuration into the unit's parameters.
func (u *MinPoolUnit) UnmarshalParameters(params yaml.Node) error {
	var config MinPoolConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	u.config = config
	return nil
}

// DefaultMinPoolConfig tolerates failed pairings.
func DefaultMinPoolConfig() MinPoolConfig {
	return MinPoolConfig{}
}

// NewMinPoolFromConfig creates a MinPoolUnit from a configuration map.
func NewMinPoolFromConfig(id string, config map[string]any) (ports.Unit, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cfg := DefaultMinPoolConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewMinPoolUnit(id, cfg)
}
