package units

import (
	"fmt"
	"math"

	"github.com/ahrav/go-nns/internal/domain"
)

// MinCandidateSamples is the smallest candidate that can bracket a template sample.
const MinCandidateSamples = 2

// NNS computes the nearest-neighbor agreement score of candidate against
// template as a percentage in [0, 100].
//
// For every template sample i:
//  1. The Euclidean distance to every candidate sample is computed.
//  2. ind1 is the nearest candidate sample; ind2 the next one in rank order
//     (ascending distance, ties by candidate position).
//  3. While the two share a first coordinate, ind2 advances to the next
//     ranked sample, so the bracket below never divides by zero.
//  4. The bracket is ordered by candidate position, not by coordinate value:
//     minInd = min(ind1, ind2), maxInd = max(ind1, ind2).
//  5. The bracket line is evaluated at the template's first coordinate:
//     interp = ((a - A[max])*B[min] - (a - A[min])*B[max]) / (A[min] - A[max])
//  6. The sample matches when |interp - b| < accThr, or failing that when
//     |interp - b| < bThr.
//
// The score is matches / N * 100.
//
// Complexity: O(N·M) time and O(1) extra memory for N template and M
// candidate samples.
//
// Errors:
//   - domain.ErrEmptyTemplate: template has no samples.
//   - domain.ErrInvalidCurveLength: mismatched sequences or fewer than two candidate samples.
//   - domain.ErrNonFiniteSample: NaN or infinite coordinates.
//   - domain.ErrDegenerateCandidate: every candidate sample shares one first coordinate.
//   - domain.ErrInvalidConfiguration: negative or non-finite thresholds.
func NNS(template, candidate domain.Curve, accThr, bThr float64) (float64, error) {
	if err := template.Validate(); err != nil {
		return 0, fmt.Errorf("template: %w", err)
	}
	if err := candidate.Validate(); err != nil {
		return 0, fmt.Errorf("candidate: %w", err)
	}
	if template.Len() == 0 {
		return 0, domain.ErrEmptyTemplate
	}
	if candidate.Len() < MinCandidateSamples {
		return 0, fmt.Errorf("%w: candidate has %d samples, need at least %d",
			domain.ErrInvalidCurveLength, candidate.Len(), MinCandidateSamples)
	}
	thr := domain.Thresholds{Accuracy: accThr, Tolerance: bThr}
	if err := thr.Validate(); err != nil {
		return 0, err
	}

	matches := 0
	for i := range template.A {
		interp, err := interpolate(template.A[i], template.B[i], candidate)
		if err != nil {
			return 0, fmt.Errorf("template sample %d: %w", i, err)
		}

		diff := math.Abs(interp - template.B[i])
		if diff < accThr {
			matches++
		} else if diff < bThr {
			matches++
		}
	}

	return float64(matches) / float64(template.Len()) * 100, nil
}

// interpolate brackets the query point (a, b) with its two nearest candidate
// samples and evaluates the bracket line's second coordinate at a.
func interpolate(a, b float64, candidate domain.Curve) (float64, error) {
	ind1, ind2, err := nearestBracket(a, b, candidate)
	if err != nil {
		return 0, err
	}

	minInd, maxInd := min(ind1, ind2), max(ind1, ind2)
	repA, repB := candidate.A, candidate.B
	return ((a-repA[maxInd])*repB[minInd] - (a-repA[minInd])*repB[maxInd]) /
		(repA[minInd] - repA[maxInd]), nil
}

// nearestBracket returns the nearest candidate index and the nearest-ranked
// index whose first coordinate differs from it. Ranks order samples by
// distance and then by position, so walking the ranks until the first
// coordinate changes is a single minimum search over the eligible samples.
func nearestBracket(a, b float64, candidate domain.Curve) (int, int, error) {
	ind1 := 0
	best := distance(a, b, candidate.A[0], candidate.B[0])
	for j := 1; j < candidate.Len(); j++ {
		if d := distance(a, b, candidate.A[j], candidate.B[j]); d < best {
			ind1, best = j, d
		}
	}

	ind2 := -1
	second := math.Inf(1)
	for j := range candidate.A {
		if j == ind1 || candidate.A[j] == candidate.A[ind1] {
			continue
		}
		if d := distance(a, b, candidate.A[j], candidate.B[j]); ind2 < 0 || d < second {
			ind2, second = j, d
		}
	}
	if ind2 < 0 {
		return 0, 0, fmt.Errorf("%w: all %d samples share first coordinate %g",
			domain.ErrDegenerateCandidate, candidate.Len(), candidate.A[ind1])
	}

	return ind1, ind2, nil
}

// distance returns the Euclidean distance between (a1, b1) and (a2, b2).
func distance(a1, b1, a2, b2 float64) float64 {
	da, db := a2-a1, b2-b1
	return math.Sqrt(da*da + db*db)
}
