// Package store persists analysis reports in SQLite through gorm.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ahrav/go-nns/internal/domain"
	"github.com/ahrav/go-nns/internal/ports"
)

// DefaultDBFile is the database file used when no path is configured.
const DefaultDBFile = "nns.sqlite3"

var _ ports.ReportStore = (*SQLiteStore)(nil)

// SQLiteStore implements ports.ReportStore on a SQLite database.
type SQLiteStore struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// reportRow is one analysis run.
type reportRow struct {
	RunID      string `gorm:"primaryKey;type:varchar(36)"`
	Dataset    string `gorm:"index:idx_report_dataset"`
	TemplateID string
	Aggregator string
	CreatedAt  time.Time `gorm:"index:idx_report_created"`

	Repetitions []repetitionRow `gorm:"foreignKey:RunID;references:RunID;constraint:OnDelete:CASCADE"`
}

func (reportRow) TableName() string { return "reports" }

// repetitionRow is the aggregate score of one repetition of a run.
type repetitionRow struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	RunID    string `gorm:"type:varchar(36);uniqueIndex:idx_repetition_run,priority:1"`
	Index    int    `gorm:"column:repetition_index;uniqueIndex:idx_repetition_run,priority:2"`
	TrialID  string
	Score    float64
	Failed   int
	ErrorMsg string

	Pairings []pairingRow `gorm:"foreignKey:RepetitionID;constraint:OnDelete:CASCADE"`
}

func (repetitionRow) TableName() string { return "repetition_scores" }

// pairingRow is the NNS result of one pairing of one repetition.
type pairingRow struct {
	ID           uint `gorm:"primaryKey;autoIncrement"`
	RepetitionID uint `gorm:"index:idx_pairing_repetition"`
	Position     int
	First        string
	Second       string
	Accuracy     float64
	Tolerance    float64
	Score        float64
	ErrorMsg     string
}

func (pairingRow) TableName() string { return "pairing_scores" }

// Open opens or creates the SQLite database at path and migrates the schema.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultDBFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&reportRow{}, &repetitionRow{}, &pairingRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &SQLiteStore{db: db, sqlDB: sqlDB}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveReport stores report and all its scores in one transaction.
func (s *SQLiteStore) SaveReport(ctx context.Context, report domain.Report) error {
	if report.RunID == "" {
		return fmt.Errorf("%w: report has no run ID", domain.ErrInvalidConfiguration)
	}

	row := toRow(report)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("saving report %s: %w", report.RunID, err)
	}
	return nil
}

// GetReport loads the report with the given run ID.
func (s *SQLiteStore) GetReport(ctx context.Context, runID string) (domain.Report, error) {
	var row reportRow
	err := s.preload(ctx).First(&row, "run_id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Report{}, fmt.Errorf("%w: %s", ports.ErrReportNotFound, runID)
	}
	if err != nil {
		return domain.Report{}, fmt.Errorf("loading report %s: %w", runID, err)
	}
	return fromRow(row), nil
}

// ListReports returns the reports of a dataset, newest first.
func (s *SQLiteStore) ListReports(ctx context.Context, dataset string) ([]domain.Report, error) {
	var rows []reportRow
	err := s.preload(ctx).
		Where("dataset = ?", dataset).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing reports for %s: %w", dataset, err)
	}

	reports := make([]domain.Report, len(rows))
	for i, r := range rows {
		reports[i] = fromRow(r)
	}
	return reports, nil
}

// preload returns a query that loads a report's repetitions and pairings
// in their stored order.
func (s *SQLiteStore) preload(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Repetitions", func(db *gorm.DB) *gorm.DB {
			return db.Order("repetition_index ASC")
		}).
		Preload("Repetitions.Pairings", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})
}

func toRow(r domain.Report) reportRow {
	row := reportRow{
		RunID:       r.RunID,
		Dataset:     r.Dataset,
		TemplateID:  r.TemplateID,
		Aggregator:  r.Aggregator,
		CreatedAt:   r.CreatedAt,
		Repetitions: make([]repetitionRow, len(r.Scores)),
	}
	for i, rs := range r.Scores {
		rep := repetitionRow{
			RunID:    r.RunID,
			Index:    rs.Index,
			TrialID:  rs.TrialID,
			Score:    rs.Score,
			Failed:   rs.Failed,
			ErrorMsg: errorText(rs.Err),
			Pairings: make([]pairingRow, len(rs.Pairings)),
		}
		for j, p := range rs.Pairings {
			rep.Pairings[j] = pairingRow{
				Position:  j,
				First:     p.Pairing.First,
				Second:    p.Pairing.Second,
				Accuracy:  p.Thresholds.Accuracy,
				Tolerance: p.Thresholds.Tolerance,
				Score:     p.Score,
				ErrorMsg:  errorText(p.Err),
			}
		}
		row.Repetitions[i] = rep
	}
	return row
}

func fromRow(row reportRow) domain.Report {
	r := domain.Report{
		RunID:      row.RunID,
		Dataset:    row.Dataset,
		TemplateID: row.TemplateID,
		Aggregator: row.Aggregator,
		CreatedAt:  row.CreatedAt,
		Scores:     make([]domain.RepetitionScore, len(row.Repetitions)),
	}
	for i, rep := range row.Repetitions {
		rs := domain.RepetitionScore{
			Index:    rep.Index,
			TrialID:  rep.TrialID,
			Score:    rep.Score,
			Failed:   rep.Failed,
			Err:      storedError(rep.ErrorMsg),
			Pairings: make([]domain.PairingScore, len(rep.Pairings)),
		}
		for j, p := range rep.Pairings {
			rs.Pairings[j] = domain.PairingScore{
				Pairing:    domain.Pairing{First: p.First, Second: p.Second},
				Thresholds: domain.Thresholds{Accuracy: p.Accuracy, Tolerance: p.Tolerance},
				Score:      p.Score,
				Err:        storedError(p.ErrorMsg),
			}
		}
		r.Scores[i] = rs
	}
	return r
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// storedError restores a persisted error message. The original error chain
// is not recoverable, so errors.Is against domain sentinels will not match.
func storedError(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}
