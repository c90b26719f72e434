package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nns/infrastructure/store"
	"github.com/ahrav/go-nns/infrastructure/trialdata"
	"github.com/ahrav/go-nns/internal/testutils"
)

func writeDataset(t *testing.T) string {
	t.Helper()

	template, reps := testutils.GenerateTrialDataset(testutils.DefaultMovementOptions(), 3, 7)
	dir := filepath.Join(t.TempDir(), "ABD_30")
	require.NoError(t, trialdata.WriteDataset(dir, template, reps))
	return dir
}

func TestRun(t *testing.T) {
	dataset := writeDataset(t)
	out := t.TempDir()
	dbPath := filepath.Join(out, "reports.db")
	csvPath := filepath.Join(out, "pairings.csv")

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"-db", dbPath, "-pairings-out", csvPath, dataset}, &stdout)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "for the 3 considered repetitions")
	assert.Contains(t, stdout.String(), "Run ID: ")

	csv, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.NotEmpty(t, csv)

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	reports, err := db.ListReports(context.Background(), "ABD_30")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Len(t, reports[0].Scores, 3)
}

func TestRun_Errors(t *testing.T) {
	dataset := writeDataset(t)
	missingConfig := filepath.Join(t.TempDir(), "missing.yaml")

	tests := []struct {
		name    string
		args    func(t *testing.T) []string
		wantErr string
	}{
		{
			name:    "no dataset",
			args:    func(*testing.T) []string { return nil },
			wantErr: errUsage.Error(),
		},
		{
			name:    "unknown flag",
			args:    func(*testing.T) []string { return []string{"-bogus", dataset} },
			wantErr: errUsage.Error(),
		},
		{
			name:    "missing config",
			args:    func(*testing.T) []string { return []string{"-config", missingConfig, dataset} },
			wantErr: "failed to load configuration",
		},
		{
			name: "dataset not found with a store open",
			args: func(t *testing.T) []string {
				return []string{"-db", filepath.Join(t.TempDir(), "reports.db"), filepath.Join(t.TempDir(), "nope")}
			},
			wantErr: "analysis failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			err := run(context.Background(), tt.args(t), &stdout)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.Empty(t, stdout.String())
		})
	}
}
