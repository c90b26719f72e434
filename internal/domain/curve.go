package domain

import (
	"fmt"
	"math"

	"golang.org/x/text/cases"
)

// foldName normalizes a channel name so "w" and "W" resolve to the same
// column. A Caser is stateful, so each call gets its own.
func foldName(name string) string { return cases.Fold().String(name) }

// FoldChannel returns the case-folded form under which channel names are
// compared. Two names with the same folded form select the same column.
func FoldChannel(name string) string { return foldName(name) }

// FoldPairing returns p with both channel names case-folded.
func FoldPairing(p Pairing) Pairing {
	return Pairing{First: foldName(p.First), Second: foldName(p.Second)}
}

// Curve is a 2-D trajectory sampled as two parallel coordinate sequences.
// A[i] and B[i] are the first and second coordinates of sample i.
// For a template curve the sample order defines the query points; for a
// candidate curve the samples are treated as an unordered point cloud.
type Curve struct {
	// A holds the first-coordinate values (the interpolation axis).
	A []float64 `json:"a"`

	// B holds the second-coordinate values (the tested axis).
	B []float64 `json:"b"`
}

// NewCurve builds a Curve and validates that both sequences have the same length.
func NewCurve(a, b []float64) (Curve, error) {
	c := Curve{A: a, B: b}
	if err := c.Validate(); err != nil {
		return Curve{}, err
	}
	return c, nil
}

// Len returns the number of samples in the curve.
func (c Curve) Len() int { return len(c.A) }

// Validate reports ErrInvalidCurveLength when the coordinate sequences differ
// in length and ErrNonFiniteSample when any coordinate is NaN or infinite.
func (c Curve) Validate() error {
	if len(c.A) != len(c.B) {
		return fmt.Errorf("%w: first coordinate has %d samples, second has %d",
			ErrInvalidCurveLength, len(c.A), len(c.B))
	}
	for i := range c.A {
		if !finite(c.A[i]) || !finite(c.B[i]) {
			return fmt.Errorf("%w at sample %d: (%g, %g)", ErrNonFiniteSample, i, c.A[i], c.B[i])
		}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Trajectory is a multi-channel recording of one trial, for example the four
// components W, X, Y, Z of an orientation quaternion. Columns[k] holds the
// samples of Channels[k]; all columns share the same length.
type Trajectory struct {
	// ID identifies the trial the trajectory was recorded in (e.g. "trial02").
	ID string `json:"id"`

	// Channels names each column, in column order.
	Channels []string `json:"channels"`

	// Columns holds one sample sequence per channel.
	Columns [][]float64 `json:"columns"`
}

// NewTrajectory builds a Trajectory and validates its shape.
func NewTrajectory(id string, channels []string, columns [][]float64) (Trajectory, error) {
	t := Trajectory{ID: id, Channels: channels, Columns: columns}
	if err := t.Validate(); err != nil {
		return Trajectory{}, err
	}
	return t, nil
}

// Validate checks that every channel has a column and all columns have equal length.
func (t Trajectory) Validate() error {
	if len(t.Channels) != len(t.Columns) {
		return fmt.Errorf("trajectory %q: %d channels but %d columns: %w",
			t.ID, len(t.Channels), len(t.Columns), ErrInvalidCurveLength)
	}
	for k := 1; k < len(t.Columns); k++ {
		if len(t.Columns[k]) != len(t.Columns[0]) {
			return fmt.Errorf("trajectory %q: channel %s has %d samples, channel %s has %d: %w",
				t.ID, t.Channels[k], len(t.Columns[k]), t.Channels[0], len(t.Columns[0]),
				ErrInvalidCurveLength)
		}
	}
	return nil
}

// Len returns the number of samples per channel.
func (t Trajectory) Len() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0])
}

// Channel returns the samples recorded for the named channel. Channel names
// are matched with Unicode case folding.
func (t Trajectory) Channel(name string) ([]float64, error) {
	want := foldName(name)
	for k, ch := range t.Channels {
		if foldName(ch) == want && k < len(t.Columns) {
			return t.Columns[k], nil
		}
	}
	return nil, fmt.Errorf("trajectory %q: %w: %s", t.ID, ErrUnknownChannel, name)
}

// Curve projects the trajectory onto the two channels of a pairing.
func (t Trajectory) Curve(p Pairing) (Curve, error) {
	a, err := t.Channel(p.First)
	if err != nil {
		return Curve{}, err
	}
	b, err := t.Channel(p.Second)
	if err != nil {
		return Curve{}, err
	}
	return NewCurve(a, b)
}
