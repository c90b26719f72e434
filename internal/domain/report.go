package domain

import (
	"time"
)

// PairingScore is the NNS result for one channel pairing of one repetition.
type PairingScore struct {
	// Pairing identifies the two channels compared.
	Pairing Pairing `json:"pairing"`

	// Thresholds are the tolerances the pairing was tested against.
	Thresholds Thresholds `json:"thresholds"`

	// Score is the percentage of template samples matched, in [0, 100].
	// It is zero when Err is set.
	Score float64 `json:"score"`

	// Err is the scoring failure for this pairing, if any.
	Err error `json:"-"`
}

// OK reports whether the pairing produced a usable score.
func (p PairingScore) OK() bool { return p.Err == nil }

// RepetitionScore is the aggregated agreement score of one repetition.
type RepetitionScore struct {
	// Index is the zero-based position of the repetition in the input.
	Index int `json:"index"`

	// TrialID is the identifier of the repetition's trajectory.
	TrialID string `json:"trial_id"`

	// Score is the aggregate of the successful pairing scores.
	Score float64 `json:"score"`

	// Pairings holds the individual pairing results in configured order.
	Pairings []PairingScore `json:"pairings"`

	// Failed counts pairings excluded from the aggregate because they errored.
	Failed int `json:"failed"`

	// Err is set when no pairing could be scored.
	Err error `json:"-"`
}

// Report is the outcome of scoring every repetition of one dataset.
type Report struct {
	// RunID uniquely identifies this analysis run.
	RunID string `json:"run_id"`

	// Dataset names the movement dataset that was analyzed.
	Dataset string `json:"dataset"`

	// TemplateID identifies the template trajectory.
	TemplateID string `json:"template_id"`

	// Aggregator names the strategy that combined pairing scores.
	Aggregator string `json:"aggregator"`

	// CreatedAt is when the analysis finished.
	CreatedAt time.Time `json:"created_at"`

	// Scores holds one entry per repetition, in repetition order.
	Scores []RepetitionScore `json:"scores"`
}

// Values returns the per-repetition scores in repetition order.
func (r Report) Values() []float64 {
	out := make([]float64, len(r.Scores))
	for i, s := range r.Scores {
		out[i] = s.Score
	}
	return out
}
