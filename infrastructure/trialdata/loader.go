// Package trialdata reads and writes movement datasets stored as a
// directory of per-trial CSV files.
//
// A dataset directory holds trial01.csv (the template) and trial02.csv,
// trial03.csv, ... (the repetitions). Each row is one sample and each
// column one channel, W, X, Y, Z by default. A header row naming the
// channels is optional.
package trialdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ahrav/go-nns/internal/domain"
	"github.com/ahrav/go-nns/internal/ports"
)

var _ ports.TrajectorySource = (*Loader)(nil)

// TemplateTrial is the trial number of the template recording.
const TemplateTrial = 1

var trialFilePattern = regexp.MustCompile(`(?i)^trial(\d+)\.csv$`)

// Loader implements ports.TrajectorySource over a root directory of
// dataset subdirectories.
type Loader struct {
	root     string
	channels []string
}

// NewLoader creates a loader rooted at root. Dataset names passed to Load
// are resolved relative to root; an empty root resolves them against the
// working directory. With no channels given the quaternion layout
// W, X, Y, Z is assumed.
func NewLoader(root string, channels ...string) *Loader {
	if len(channels) == 0 {
		channels = domain.QuaternionChannels
	}
	return &Loader{root: root, channels: slices.Clone(channels)}
}

// Load reads the dataset directory name. Repetitions are ordered by trial
// number, which need not be contiguous.
func (l *Loader) Load(ctx context.Context, name string) (ports.Dataset, error) {
	dir := filepath.Join(l.root, name)

	trials, err := listTrials(dir)
	if err != nil {
		return ports.Dataset{}, err
	}
	if len(trials) == 0 || trials[0].number != TemplateTrial {
		return ports.Dataset{}, fmt.Errorf("%w: %s has no trial%02d.csv template",
			ports.ErrDatasetNotFound, dir, TemplateTrial)
	}

	ds := ports.Dataset{Name: filepath.Base(filepath.Clean(dir))}
	for i, tr := range trials {
		if err := ctx.Err(); err != nil {
			return ports.Dataset{}, err
		}

		traj, err := l.readTrial(tr.path)
		if err != nil {
			return ports.Dataset{}, err
		}
		if i == 0 {
			ds.Template = traj
			continue
		}
		ds.Repetitions = append(ds.Repetitions, traj)
	}
	return ds, nil
}

type trialFile struct {
	number int
	path   string
}

// listTrials returns the trial files of dir sorted by trial number.
func listTrials(dir string) ([]trialFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ports.ErrDatasetNotFound, dir)
		}
		return nil, fmt.Errorf("reading dataset directory: %w", err)
	}

	var trials []trialFile
	seen := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := trialFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if prev, dup := seen[n]; dup {
			return nil, fmt.Errorf("%w: %s and %s are both trial %d",
				ports.ErrMalformedRecord, prev, e.Name(), n)
		}
		seen[n] = e.Name()
		trials = append(trials, trialFile{number: n, path: filepath.Join(dir, e.Name())})
	}

	slices.SortFunc(trials, func(a, b trialFile) int { return a.number - b.number })
	return trials, nil
}

// readTrial parses one trial file into a Trajectory whose ID is the file's
// base name without extension.
func (l *Loader) readTrial(path string) (domain.Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Trajectory{}, fmt.Errorf("opening trial: %w", err)
	}
	defer f.Close()

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ReadTrajectory(f, id, path, l.channels)
}

// ReadTrajectory parses CSV samples from r. source names the input in
// error messages.
func ReadTrajectory(r io.Reader, id, source string, channels []string) (domain.Trajectory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(channels)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	columns := make([][]float64, len(channels))
	line := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line
			}
			return domain.Trajectory{}, ports.NewRecordError(source, line,
				fmt.Errorf("%w: %v", ports.ErrMalformedRecord, err))
		}

		if line == 1 && isHeader(record, channels) {
			continue
		}

		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return domain.Trajectory{}, ports.NewRecordError(source, line,
					fmt.Errorf("%w: column %s: %v", ports.ErrMalformedRecord, channels[j], err))
			}
			columns[j] = append(columns[j], v)
		}
	}

	traj, err := domain.NewTrajectory(id, channels, columns)
	if err != nil {
		return domain.Trajectory{}, ports.NewRecordError(source, 0, err)
	}
	return traj, nil
}

// isHeader reports whether record names the channels, ignoring case.
func isHeader(record, channels []string) bool {
	fold := cases.Fold()
	for i, field := range record {
		if fold.String(strings.TrimSpace(field)) != fold.String(channels[i]) {
			return false
		}
	}
	return true
}
