package units

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-nns/internal/domain"
	"github.com/ahrav/go-nns/internal/ports"
)

// aggregatorUnit is implemented by every pairing-score aggregator.
type aggregatorUnit interface {
	ports.Unit
	domain.Aggregator
}

func newAggregators(t *testing.T, requireAll bool) map[string]aggregatorUnit {
	t.Helper()

	mean, err := NewArithmeticMeanUnit("mean", ArithmeticMeanConfig{RequireAllScores: requireAll})
	require.NoError(t, err)
	median, err := NewMedianPoolUnit("median", MedianPoolConfig{RequireAllScores: requireAll})
	require.NoError(t, err)
	minPool, err := NewMinPoolUnit("min", MinPoolConfig{RequireAllScores: requireAll})
	require.NoError(t, err)

	return map[string]aggregatorUnit{"mean": mean, "median": median, "min": minPool}
}

func TestAggregators_Aggregate(t *testing.T) {
	tests := []struct {
		name    string
		scores  []float64
		want    map[string]float64
		errText string
	}{
		{
			name:   "six pairing scores",
			scores: []float64{100, 50, 75, 100, 25, 100},
			want:   map[string]float64{"mean": 75, "median": 87.5, "min": 25},
		},
		{
			name:   "odd count",
			scores: []float64{90, 10, 40},
			want:   map[string]float64{"mean": 140.0 / 3, "median": 40, "min": 10},
		},
		{
			name:   "single score",
			scores: []float64{66.5},
			want:   map[string]float64{"mean": 66.5, "median": 66.5, "min": 66.5},
		},
		{
			name:    "empty scores",
			scores:  []float64{},
			errText: "no scores provided for aggregation",
		},
		{
			name:    "NaN score",
			scores:  []float64{80, math.NaN()},
			errText: "invalid score at index 1",
		},
		{
			name:    "infinite score",
			scores:  []float64{math.Inf(-1), 80},
			errText: "invalid score at index 0",
		},
	}

	for _, tt := range tests {
		for name, agg := range newAggregators(t, false) {
			t.Run(fmt.Sprintf("%s/%s", tt.name, name), func(t *testing.T) {
				input := append([]float64(nil), tt.scores...)
				got, err := agg.Aggregate(input)
				if tt.errText != "" {
					require.Error(t, err)
					assert.Contains(t, err.Error(), tt.errText)
					return
				}
				require.NoError(t, err)
				assert.InDelta(t, tt.want[name], got, 1e-9)
				assert.Equal(t, tt.scores, input, "input must not be reordered")
			})
		}
	}
}

// TestAggregators_OrderIndependent checks that permuting pairing scores
// never changes the aggregate.
func TestAggregators_OrderIndependent(t *testing.T) {
	scores := []float64{83.3, 100, 41.7, 95, 12.5, 66.6}
	permutations := [][]int{
		{0, 1, 2, 3, 4, 5},
		{5, 4, 3, 2, 1, 0},
		{2, 0, 4, 1, 5, 3},
		{1, 3, 5, 0, 2, 4},
	}

	for name, agg := range newAggregators(t, false) {
		want, err := agg.Aggregate(scores)
		require.NoError(t, err)

		for _, perm := range permutations {
			permuted := make([]float64, len(scores))
			for i, j := range perm {
				permuted[i] = scores[j]
			}
			got, err := agg.Aggregate(permuted)
			require.NoError(t, err)
			assert.InDelta(t, want, got, 1e-9, "%s %v", name, perm)
		}
	}
}

func pairingResults(scores ...any) []domain.PairingScore {
	pairings := domain.DefaultPairings()
	out := make([]domain.PairingScore, len(scores))
	for i, s := range scores {
		out[i].Pairing = pairings[i%len(pairings)]
		switch v := s.(type) {
		case float64:
			out[i].Score = v
		case error:
			out[i].Err = domain.NewCurveError(2, out[i].Pairing, v)
		}
	}
	return out
}

func TestAggregators_Execute(t *testing.T) {
	candidate := domain.Trajectory{ID: "trial04"}

	tests := []struct {
		name       string
		requireAll bool
		pairings   []domain.PairingScore
		wantMean   float64
		wantFailed int
		wantErr    error
	}{
		{
			name:     "all pairings scored",
			pairings: pairingResults(100.0, 50.0, 75.0, 100.0, 25.0, 100.0),
			wantMean: 75,
		},
		{
			name:       "failed pairings are excluded",
			pairings:   pairingResults(100.0, domain.ErrDegenerateCandidate, 50.0, domain.ErrDegenerateCandidate, 60.0, 90.0),
			wantMean:   75,
			wantFailed: 2,
		},
		{
			name:       "require all scores",
			requireAll: true,
			pairings:   pairingResults(100.0, domain.ErrDegenerateCandidate, 50.0),
			wantFailed: 1,
			wantErr:    domain.ErrDegenerateCandidate,
		},
		{
			name:       "every pairing failed",
			pairings:   pairingResults(domain.ErrInvalidCurveLength, domain.ErrDegenerateCandidate),
			wantFailed: 2,
			wantErr:    domain.ErrNoScores,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := NewArithmeticMeanUnit("mean", ArithmeticMeanConfig{RequireAllScores: tt.requireAll})
			require.NoError(t, err)

			state := domain.With(domain.NewState(), domain.KeyPairingScores, tt.pairings)
			state = domain.With(state, domain.KeyCandidate, candidate)
			state = domain.With(state, domain.KeyRepetitionIndex, 2)

			out, err := unit.Execute(context.Background(), state)
			require.NoError(t, err, "pairing failures never fail the unit")

			result, err := domain.MustGet(out, domain.KeyRepetitionScore)
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.Equal(t, 2, result.Index)
			assert.Equal(t, "trial04", result.TrialID)
			assert.Equal(t, tt.wantFailed, result.Failed)
			assert.Len(t, result.Pairings, len(tt.pairings))

			if tt.wantErr != nil {
				assert.ErrorIs(t, result.Err, tt.wantErr)
				assert.Zero(t, result.Score)
				return
			}
			assert.NoError(t, result.Err)
			assert.InDelta(t, tt.wantMean, result.Score, 1e-9)
		})
	}
}

func TestAggregators_ExecuteMissingScores(t *testing.T) {
	for name, agg := range newAggregators(t, false) {
		_, err := agg.Execute(context.Background(), domain.NewState())
		require.Error(t, err, name)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound, name)
	}
}

func TestAggregators_NameAndValidate(t *testing.T) {
	for name, agg := range newAggregators(t, true) {
		assert.Equal(t, name, agg.Name())
		assert.NoError(t, agg.Validate())
	}

	_, err := NewArithmeticMeanUnit("", DefaultArithmeticMeanConfig())
	assert.ErrorIs(t, err, ErrEmptyUnitName)
	_, err = NewMedianPoolUnit("", DefaultMedianPoolConfig())
	assert.ErrorIs(t, err, ErrEmptyUnitName)
	_, err = NewMinPoolUnit("", DefaultMinPoolConfig())
	assert.ErrorIs(t, err, ErrEmptyUnitName)
}

func TestAggregators_FromConfig(t *testing.T) {
	factories := map[string]func(string, map[string]any) (ports.Unit, error){
		"mean":   NewArithmeticMeanFromConfig,
		"median": NewMedianPoolFromConfig,
		"min":    NewMinPoolFromConfig,
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			unit, err := factory(name, map[string]any{"require_all_scores": true})
			require.NoError(t, err)
			assert.Equal(t, name, unit.Name())

			state := domain.With(domain.NewState(), domain.KeyPairingScores,
				pairingResults(80.0, domain.ErrDegenerateCandidate))
			out, err := unit.Execute(context.Background(), state)
			require.NoError(t, err)

			result, err := domain.MustGet(out, domain.KeyRepetitionScore)
			require.NoError(t, err)
			assert.Error(t, result.Err, "require_all_scores should be honored")

			_, err = factory(name, map[string]any{"require_all_scores": "sometimes"})
			assert.Error(t, err)
		})
	}
}

func TestArithmeticMeanUnit_UnmarshalParameters(t *testing.T) {
	unit, err := NewArithmeticMeanUnit("mean", DefaultArithmeticMeanConfig())
	require.NoError(t, err)

	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("require_all_scores: true"), &node))
	require.NoError(t, unit.UnmarshalParameters(*node.Content[0]))
	assert.True(t, unit.config.RequireAllScores)

	require.NoError(t, yaml.Unmarshal([]byte("require_all_scores: [1]"), &node))
	assert.Error(t, unit.UnmarshalParameters(*node.Content[0]))
	assert.True(t, unit.config.RequireAllScores)
}
