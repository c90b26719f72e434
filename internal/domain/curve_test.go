package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCurve(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float64
		wantErr error
	}{
		{name: "equal lengths", a: []float64{0, 1}, b: []float64{2, 3}},
		{name: "empty", a: nil, b: nil},
		{name: "mismatched lengths", a: []float64{0, 1, 2}, b: []float64{0}, wantErr: ErrInvalidCurveLength},
		{name: "NaN", a: []float64{0, math.NaN()}, b: []float64{0, 1}, wantErr: ErrNonFiniteSample},
		{name: "negative infinity", a: []float64{0}, b: []float64{math.Inf(-1)}, wantErr: ErrNonFiniteSample},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCurve(tt.a, tt.b)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.a), c.Len())
		})
	}
}

func quaternion() Trajectory {
	return Trajectory{
		ID:       "trial02",
		Channels: []string{"W", "X", "Y", "Z"},
		Columns: [][]float64{
			{1.0, 0.98, 0.95},
			{0.0, 0.10, 0.20},
			{0.0, 0.05, 0.08},
			{0.0, -0.01, 0.02},
		},
	}
}

func TestTrajectory_Validate(t *testing.T) {
	assert.NoError(t, quaternion().Validate())
	assert.Equal(t, 3, quaternion().Len())
	assert.Zero(t, Trajectory{}.Len())

	ragged := quaternion()
	ragged.Columns[2] = ragged.Columns[2][:2]
	assert.ErrorIs(t, ragged.Validate(), ErrInvalidCurveLength)

	missing := quaternion()
	missing.Columns = missing.Columns[:3]
	assert.ErrorIs(t, missing.Validate(), ErrInvalidCurveLength)

	_, err := NewTrajectory("bad", []string{"A"}, nil)
	assert.ErrorIs(t, err, ErrInvalidCurveLength)
}

func TestTrajectory_Channel(t *testing.T) {
	traj := quaternion()

	tests := []struct {
		name    string
		channel string
		want    []float64
		wantErr error
	}{
		{name: "exact", channel: "X", want: []float64{0.0, 0.10, 0.20}},
		{name: "lowercase", channel: "z", want: []float64{0.0, -0.01, 0.02}},
		{name: "unknown", channel: "Q", wantErr: ErrUnknownChannel},
		{name: "empty", channel: "", wantErr: ErrUnknownChannel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := traj.Channel(tt.channel)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrajectory_Curve(t *testing.T) {
	traj := quaternion()

	c, err := traj.Curve(Pairing{First: "Y", Second: "W"})
	require.NoError(t, err)
	assert.Equal(t, traj.Columns[2], c.A)
	assert.Equal(t, traj.Columns[0], c.B)

	_, err = traj.Curve(Pairing{First: "X", Second: "V"})
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestFoldChannel(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{a: "a", b: "A", same: true},
		{a: "Hip_Flex", b: "hip_flex", same: true},
		{a: "X", b: "Y", same: false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.same, FoldChannel(tt.a) == FoldChannel(tt.b))
		})
	}

	assert.Equal(t, FoldPairing(Pairing{First: "X", Second: "Y"}), FoldPairing(Pairing{First: "x", Second: "y"}))
}

func TestTrajectory_ChannelMatchesFoldedName(t *testing.T) {
	traj := Trajectory{
		ID:       "trial01",
		Channels: []string{"a", "b"},
		Columns:  [][]float64{{0, 1, 2}, {5, -3, 9}},
	}

	lower, err := traj.Channel("a")
	require.NoError(t, err)
	upper, err := traj.Channel("A")
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
	assert.Equal(t, FoldChannel("a"), FoldChannel("A"))
}
