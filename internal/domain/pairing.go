package domain

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// Quaternion component channel names used by the default analysis.
const (
	ChannelW = "W"
	ChannelX = "X"
	ChannelY = "Y"
	ChannelZ = "Z"
)

// QuaternionChannels is the column order of a recorded orientation quaternion.
var QuaternionChannels = []string{ChannelW, ChannelX, ChannelY, ChannelZ}

// Pairing selects two channels of a Trajectory to form a 2-D Curve.
// First is the interpolation axis; Second is the tested axis and also
// selects which channel's tolerance thresholds apply.
type Pairing struct {
	First  string `yaml:"first" json:"first" validate:"required"`
	Second string `yaml:"second" json:"second" validate:"required"`
}

// UnmarshalYAML accepts either the compact form [X, Y] or a mapping with
// first and second keys.
func (p *Pairing) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var pair []string
		if err := node.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: pairing needs exactly 2 channels, got %d", node.Line, len(pair))
		}
		p.First, p.Second = pair[0], pair[1]
		return nil
	}

	type plain Pairing
	return node.Decode((*plain)(p))
}

// MarshalYAML writes the compact [X, Y] form.
func (p Pairing) MarshalYAML() (any, error) {
	return []string{p.First, p.Second}, nil
}

// Label returns a short human-readable name such as "X-Y".
func (p Pairing) Label() string { return p.First + "-" + p.Second }

// String implements fmt.Stringer.
func (p Pairing) String() string { return p.Label() }

// DefaultPairings returns the six quaternion pairings in the order the
// movement analysis has always reported them: XY, YZ, XZ, XW, YW, ZW.
func DefaultPairings() []Pairing {
	return []Pairing{
		{First: ChannelX, Second: ChannelY},
		{First: ChannelY, Second: ChannelZ},
		{First: ChannelX, Second: ChannelZ},
		{First: ChannelX, Second: ChannelW},
		{First: ChannelY, Second: ChannelW},
		{First: ChannelZ, Second: ChannelW},
	}
}

// AllPairings enumerates every unordered pair of distinct channels, C(n,2)
// in total, with First preceding Second in the given channel order.
func AllPairings(channels []string) []Pairing {
	n := len(channels)
	if n < 2 {
		return nil
	}
	pairings := make([]Pairing, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairings = append(pairings, Pairing{First: channels[i], Second: channels[j]})
		}
	}
	return pairings
}

// Thresholds holds the two tolerances a pairing score is tested against.
type Thresholds struct {
	// Accuracy is the instrument-precision tolerance (accThr).
	Accuracy float64 `json:"accuracy"`

	// Tolerance is the amplitude-derived tolerance (bThr).
	Tolerance float64 `json:"tolerance"`
}

// Validate rejects negative or non-finite thresholds.
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.Accuracy, t.Tolerance} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: thresholds must be finite and non-negative (accuracy=%g, tolerance=%g)",
				ErrInvalidConfiguration, t.Accuracy, t.Tolerance)
		}
	}
	return nil
}

// Amplitude returns |max - min| of the values, or 0 for an empty slice.
func Amplitude(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return math.Abs(hi - lo)
}

// DeriveThresholds computes per-channel thresholds from the template's
// amplitude: Tolerance = coefficient * |max - min| over the template's
// samples of that channel, Accuracy = accuracy for every channel.
// The returned map is keyed by the channel names as given.
func DeriveThresholds(
	template Trajectory,
	channels []string,
	coefficient, accuracy float64,
) (map[string]Thresholds, error) {
	if coefficient < 0 || math.IsNaN(coefficient) || math.IsInf(coefficient, 0) {
		return nil, fmt.Errorf("%w: coefficient must be finite and non-negative, got %g",
			ErrInvalidConfiguration, coefficient)
	}

	out := make(map[string]Thresholds, len(channels))
	for _, ch := range channels {
		values, err := template.Channel(ch)
		if err != nil {
			return nil, err
		}
		thr := Thresholds{Accuracy: accuracy, Tolerance: Amplitude(values) * coefficient}
		if err := thr.Validate(); err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch, err)
		}
		out[ch] = thr
	}
	return out, nil
}

// LookupThresholds finds the thresholds for a channel, falling back to a
// case-folded match when the exact name is absent.
func LookupThresholds(byChannel map[string]Thresholds, channel string) (Thresholds, bool) {
	if thr, ok := byChannel[channel]; ok {
		return thr, true
	}
	want := foldName(channel)
	for name, thr := range byChannel {
		if foldName(name) == want {
			return thr, true
		}
	}
	return Thresholds{}, false
}
