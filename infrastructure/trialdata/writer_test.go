package trialdata

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nns/internal/domain"
)

func TestTrialFileName(t *testing.T) {
	assert.Equal(t, "trial01.csv", TrialFileName(1))
	assert.Equal(t, "trial12.csv", TrialFileName(12))
	assert.Equal(t, "trial100.csv", TrialFileName(100))
}

func TestWriteTrajectory(t *testing.T) {
	traj := domain.Trajectory{
		ID:       "trial01",
		Channels: []string{"A", "B"},
		Columns:  [][]float64{{1, 0.5}, {-2, 0.125}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTrajectory(&buf, traj))
	assert.Equal(t, "1,-2\n0.5,0.125\n", buf.String())
}

func TestWriteDataset(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "ABD_30")
	traj := domain.Trajectory{ID: "t", Channels: []string{"A", "B"}, Columns: [][]float64{{1}, {2}}}

	require.NoError(t, WriteDataset(dir, traj, []domain.Trajectory{traj, traj}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Equal(t, []string{"trial01.csv", "trial02.csv", "trial03.csv"}, names)
}

func TestWritePairingScores(t *testing.T) {
	scores := []domain.RepetitionScore{
		{
			Index:   0,
			TrialID: "trial02",
			Pairings: []domain.PairingScore{
				{
					Pairing:    domain.Pairing{First: "X", Second: "Y"},
					Thresholds: domain.Thresholds{Accuracy: 0.025, Tolerance: 0.1},
					Score:      66.666666,
				},
				{
					Pairing: domain.Pairing{First: "X", Second: "W"},
					Err:     domain.ErrDegenerateCandidate,
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePairingScores(&buf, scores))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"repetition", "trial", "pairing", "accuracy", "tolerance", "score", "error"}, rows[0])
	assert.Equal(t, []string{"1", "trial02", "X-Y", "0.025", "0.1", "66.6667", ""}, rows[1])
	assert.Equal(t, []string{"1", "trial02", "X-W", "0", "0", "0.0000", "degenerate candidate"}, rows[2])
}
