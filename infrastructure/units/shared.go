// Package units provides the scoring units that implement the ports.Unit
// interface for the go-nns scoring engine.
package units

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-nns/internal/domain"
)

// Common errors returned by units.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrMissingThresholds is returned when no thresholds exist for a pairing's second channel.
	ErrMissingThresholds = errors.New("no thresholds for channel")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// checkScores rejects empty inputs and NaN or infinite values.
func checkScores(scores []float64) error {
	if len(scores) == 0 {
		return domain.ErrNoScores
	}
	for i, score := range scores {
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return fmt.Errorf("invalid score at index %d: %f", i, score)
		}
	}
	return nil
}

// aggregateRepetition reads the pairing scores from state, aggregates the
// successful ones and stores a RepetitionScore under domain.KeyRepetitionScore.
//
// A repetition whose pairings all failed, or any failed pairing when
// requireAll is set, gets RepetitionScore.Err instead of an execution error,
// so one bad repetition does not abort the batch.
func aggregateRepetition(
	state domain.State,
	agg domain.Aggregator,
	requireAll bool,
) (domain.State, error) {
	pairings, err := domain.MustGet(state, domain.KeyPairingScores)
	if err != nil {
		return state, fmt.Errorf("pairing scores not found in state: %w", err)
	}
	index, _ := domain.Get(state, domain.KeyRepetitionIndex)
	candidate, _ := domain.Get(state, domain.KeyCandidate)

	result := domain.RepetitionScore{
		Index:    index,
		TrialID:  candidate.ID,
		Pairings: pairings,
	}

	scores := make([]float64, 0, len(pairings))
	var errs []error
	for _, p := range pairings {
		if !p.OK() {
			result.Failed++
			errs = append(errs, p.Err)
			continue
		}
		scores = append(scores, p.Score)
	}

	switch {
	case requireAll && result.Failed > 0:
		result.Err = fmt.Errorf("%d of %d pairings failed: %w",
			result.Failed, len(pairings), errors.Join(errs...))
	case len(scores) == 0:
		result.Err = errors.Join(append([]error{domain.ErrNoScores}, errs...)...)
	default:
		score, err := agg.Aggregate(scores)
		if err != nil {
			return state, fmt.Errorf("aggregation failed: %w", err)
		}
		result.Score = score
	}

	return domain.With(state, domain.KeyRepetitionScore, &result), nil
}
