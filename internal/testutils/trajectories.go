package testutils

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ahrav/go-nns/internal/domain"
)

// MovementOptions shapes a synthetic joint movement recorded as an
// orientation quaternion: a rotation about Axis that rises to Amplitude
// radians and returns to rest.
type MovementOptions struct {
	// Samples is the template's sample count.
	Samples int
	// Amplitude is the peak rotation angle in radians.
	Amplitude float64
	// Axis is the rotation axis; it is normalized before use.
	Axis [3]float64
	// Noise is the standard deviation of Gaussian noise added per sample.
	Noise float64
	// AmplitudeJitter scales each repetition's amplitude by a uniform
	// factor in [1-AmplitudeJitter, 1+AmplitudeJitter].
	AmplitudeJitter float64
	// SampleJitter varies each repetition's sample count by up to this many
	// samples in either direction.
	SampleJitter int
}

// DefaultMovementOptions describes a 30 degree abduction recorded at a
// modest sample rate.
func DefaultMovementOptions() MovementOptions {
	return MovementOptions{
		Samples:         120,
		Amplitude:       math.Pi / 6,
		Axis:            [3]float64{1, 0.2, 0.1},
		Noise:           0.002,
		AmplitudeJitter: 0.1,
		SampleJitter:    10,
	}
}

// GenerateTrialDataset returns a template trajectory with ID "trial01" and
// repetitions "trial02" onward, all in W, X, Y, Z channel order. The same
// seed always yields the same dataset.
func GenerateTrialDataset(opts MovementOptions, repetitions int, seed int64) (domain.Trajectory, []domain.Trajectory) {
	rng := rand.New(rand.NewSource(seed))

	template := QuaternionMovement("trial01", opts.Samples, opts.Amplitude, opts.Axis, opts.Noise, rng)

	reps := make([]domain.Trajectory, repetitions)
	for i := range reps {
		samples := opts.Samples
		if opts.SampleJitter > 0 {
			samples += rng.Intn(2*opts.SampleJitter+1) - opts.SampleJitter
		}
		samples = max(samples, 2)

		amplitude := opts.Amplitude * (1 + opts.AmplitudeJitter*(2*rng.Float64()-1))
		reps[i] = QuaternionMovement(fmt.Sprintf("trial%02d", i+2), samples, amplitude, opts.Axis, opts.Noise, rng)
	}
	return template, reps
}

// QuaternionMovement samples a rise-and-return rotation about axis as a
// W, X, Y, Z trajectory. rng supplies the noise and may be nil when noise
// is zero.
func QuaternionMovement(
	id string,
	samples int,
	amplitude float64,
	axis [3]float64,
	noise float64,
	rng *rand.Rand,
) domain.Trajectory {
	norm := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	if norm == 0 {
		axis, norm = [3]float64{1, 0, 0}, 1
	}

	columns := make([][]float64, 4)
	for k := range columns {
		columns[k] = make([]float64, samples)
	}

	for i := 0; i < samples; i++ {
		t := 0.0
		if samples > 1 {
			t = float64(i) / float64(samples-1)
		}
		half := amplitude * math.Sin(math.Pi*t) / 2
		s := math.Sin(half)

		q := [4]float64{math.Cos(half), axis[0] / norm * s, axis[1] / norm * s, axis[2] / norm * s}
		for k := range q {
			if noise > 0 && rng != nil {
				q[k] += rng.NormFloat64() * noise
			}
			columns[k][i] = q[k]
		}
	}

	return domain.Trajectory{
		ID:       id,
		Channels: []string{domain.ChannelW, domain.ChannelX, domain.ChannelY, domain.ChannelZ},
		Columns:  columns,
	}
}

// Curve builds a domain.Curve from (a, b) points.
func Curve(points ...[2]float64) domain.Curve {
	c := domain.Curve{A: make([]float64, len(points)), B: make([]float64, len(points))}
	for i, p := range points {
		c.A[i], c.B[i] = p[0], p[1]
	}
	return c
}

// LinearCurve samples b = slope*a + intercept at n evenly spaced a values
// in [from, to].
func LinearCurve(n int, from, to, slope, intercept float64) domain.Curve {
	c := domain.Curve{A: make([]float64, n), B: make([]float64, n)}
	for i := 0; i < n; i++ {
		a := from
		if n > 1 {
			a = from + (to-from)*float64(i)/float64(n-1)
		}
		c.A[i] = a
		c.B[i] = slope*a + intercept
	}
	return c
}
