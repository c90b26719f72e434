package trialdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ahrav/go-nns/internal/domain"
)

// WriteTrajectory writes t as headerless CSV, one sample per row.
func WriteTrajectory(w io.Writer, t domain.Trajectory) error {
	cw := csv.NewWriter(w)
	row := make([]string, len(t.Columns))
	for i := 0; i < t.Len(); i++ {
		for j, col := range t.Columns {
			row[j] = strconv.FormatFloat(col[i], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDataset writes template and repetitions into dir as trial01.csv,
// trial02.csv, and so on, creating dir if needed.
func WriteDataset(dir string, template domain.Trajectory, repetitions []domain.Trajectory) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating dataset directory: %w", err)
	}

	all := append([]domain.Trajectory{template}, repetitions...)
	for i, t := range all {
		path := filepath.Join(dir, TrialFileName(i+TemplateTrial))
		if err := writeFile(path, t); err != nil {
			return err
		}
	}
	return nil
}

// TrialFileName returns the file name used for trial number n.
func TrialFileName(n int) string {
	return fmt.Sprintf("trial%02d.csv", n)
}

func writeFile(path string, t domain.Trajectory) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := WriteTrajectory(f, t); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WritePairingScores writes one row per repetition and pairing with the
// columns repetition, trial, pairing, accuracy, tolerance, score, error.
func WritePairingScores(w io.Writer, scores []domain.RepetitionScore) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"repetition", "trial", "pairing", "accuracy", "tolerance", "score", "error"}); err != nil {
		return err
	}

	for _, rs := range scores {
		for _, p := range rs.Pairings {
			errText := ""
			if p.Err != nil {
				errText = p.Err.Error()
			}
			if err := cw.Write([]string{
				strconv.Itoa(rs.Index + 1),
				rs.TrialID,
				p.Pairing.Label(),
				strconv.FormatFloat(p.Thresholds.Accuracy, 'g', -1, 64),
				strconv.FormatFloat(p.Thresholds.Tolerance, 'g', -1, 64),
				strconv.FormatFloat(p.Score, 'f', 4, 64),
				errText,
			}); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
