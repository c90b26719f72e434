package domain

// Aggregator combines the per-pairing scores of one repetition into a single
// agreement score. Implementations provide different strategies such as the
// arithmetic mean or the median.
type Aggregator interface {
	// Aggregate combines pairing scores into one score in [0, 100].
	// The result must not depend on the order of scores.
	//
	// Implementations must:
	//   - return ErrNoScores for an empty slice
	//   - reject NaN or infinite values
	//
	// Example:
	//
	//	score, err := aggregator.Aggregate([]float64{100, 80, 90})
	Aggregate(scores []float64) (float64, error)
}
