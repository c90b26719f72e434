package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-nns/internal/domain"
	"github.com/ahrav/go-nns/internal/ports"
)

var _ ports.Unit = (*NNSUnit)(nil)

// NNSUnit scores one repetition against the template across a fixed set of
// channel pairings. Each pairing projects both trajectories onto two
// channels and runs NNS with the thresholds of the pairing's second channel.
//
// Concurrency: Stateless and thread-safe. The batch aggregator runs one
// Execute per repetition in parallel.
type NNSUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config NNSConfig
}

// NNSConfig controls which pairings are scored and how failures propagate.
type NNSConfig struct {
	// Pairings lists the channel pairings scored for every repetition.
	Pairings []domain.Pairing `yaml:"pairings" json:"pairings" validate:"required,min=1,dive"`

	// FailFast aborts the repetition on the first pairing error instead of
	// recording the error and continuing with the remaining pairings.
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
}

// NewNNSUnit creates a new NNSUnit with a validated configuration.
// Returns ErrEmptyUnitName if name is empty, or a validation error when the
// pairing list is empty or a pairing repeats a channel.
func NewNNSUnit(name string, config NNSConfig) (*NNSUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	u := &NNSUnit{name: name, config: config}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Name returns the unique identifier for this unit instance.
func (u *NNSUnit) Name() string { return u.name }

// Pairings returns a copy of the configured pairings.
func (u *NNSUnit) Pairings() []domain.Pairing {
	return append([]domain.Pairing(nil), u.config.Pairings...)
}

// Execute scores the candidate trajectory against the template for every
// configured pairing.
//
// State requirements:
//   - domain.KeyTemplate: the reference trajectory
//   - domain.KeyCandidate: the repetition trajectory
//   - domain.KeyThresholds: per-channel thresholds
//   - domain.KeyRepetitionIndex: optional, used in error reports
//
// Returns a new state containing domain.KeyPairingScores in configured
// pairing order. A pairing that cannot be scored carries a *domain.CurveError
// unless FailFast is set, in which case Execute returns that error.
func (u *NNSUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	template, err := domain.MustGet(state, domain.KeyTemplate)
	if err != nil {
		return state, fmt.Errorf("template not found in state: %w", err)
	}
	candidate, err := domain.MustGet(state, domain.KeyCandidate)
	if err != nil {
		return state, fmt.Errorf("candidate not found in state: %w", err)
	}
	thresholds, err := domain.MustGet(state, domain.KeyThresholds)
	if err != nil {
		return state, fmt.Errorf("thresholds not found in state: %w", err)
	}
	index, _ := domain.Get(state, domain.KeyRepetitionIndex)

	results := make([]domain.PairingScore, 0, len(u.config.Pairings))
	for _, p := range u.config.Pairings {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		result := u.scorePairing(index, p, template, candidate, thresholds)
		if result.Err != nil && u.config.FailFast {
			return state, result.Err
		}
		results = append(results, result)
	}

	return domain.With(state, domain.KeyPairingScores, results), nil
}

// scorePairing runs NNS for a single pairing and wraps any failure in a
// CurveError that names the repetition and pairing.
func (u *NNSUnit) scorePairing(
	index int,
	p domain.Pairing,
	template, candidate domain.Trajectory,
	thresholds map[string]domain.Thresholds,
) domain.PairingScore {
	result := domain.PairingScore{Pairing: p}

	thr, ok := domain.LookupThresholds(thresholds, p.Second)
	if !ok {
		result.Err = domain.NewCurveError(index, p, fmt.Errorf("%w %s", ErrMissingThresholds, p.Second))
		return result
	}
	result.Thresholds = thr

	ref, err := template.Curve(p)
	if err != nil {
		result.Err = domain.NewCurveError(index, p, fmt.Errorf("template: %w", err))
		return result
	}
	rep, err := candidate.Curve(p)
	if err != nil {
		result.Err = domain.NewCurveError(index, p, fmt.Errorf("candidate: %w", err))
		return result
	}

	score, err := NNS(ref, rep, thr.Accuracy, thr.Tolerance)
	if err != nil {
		result.Err = domain.NewCurveError(index, p, err)
		return result
	}
	result.Score = score
	return result
}

// Validate verifies the unit configuration: at least one pairing, each
// naming two distinct channels, and no pairing listed twice.
func (u *NNSUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	seen := make(map[domain.Pairing]struct{}, len(u.config.Pairings))
	for _, p := range u.config.Pairings {
		key := domain.FoldPairing(p)
		if key.First == key.Second {
			return fmt.Errorf("%w: pairing %s uses the same channel twice",
				domain.ErrInvalidConfiguration, p.Label())
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate pairing %s", domain.ErrInvalidConfiguration, p.Label())
		}
		seen[key] = struct{}{}
	}
	return nil
}

// UnmarshalParameters decodes YAML parameters into the unit configuration.
// The unit's configuration remains unchanged on error.
func (u *NNSUnit) UnmarshalParameters(params yaml.Node) error {
	var config NNSConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}

	candidate := &NNSUnit{name: u.name, config: config}
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}

	u.config = config
	return nil
}

// DefaultNNSConfig scores the six quaternion pairings and tolerates
// individual pairing failures.
func DefaultNNSConfig() NNSConfig {
	return NNSConfig{
		Pairings: domain.DefaultPairings(),
		FailFast: false,
	}
}

// NewNNSFromConfig creates an NNSUnit from a configuration map.
// This is the boundary adapter for YAML/JSON configuration.
func NewNNSFromConfig(id string, config map[string]any) (ports.Unit, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	// Start with defaults, then overlay user config.
	cfg := DefaultNNSConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewNNSUnit(id, cfg)
}
