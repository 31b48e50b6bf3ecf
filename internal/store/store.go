package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"recallwatch/internal/metrics"
	"recallwatch/pkg/models"
)

// Store writes typed rows to the raw layer through an Upserter.
type Store struct {
	DB      *sql.DB
	Dialect Dialect

	up      *Upserter
	metrics *metrics.Metrics
}

func New(db *sql.DB, d Dialect, chunkSize int, log logrus.FieldLogger, m *metrics.Metrics) *Store {
	return &Store{
		DB:      db,
		Dialect: d,
		up:      NewUpserter(db, d, chunkSize, log),
		metrics: m,
	}
}

// Upserter exposes the generic writer for callers with their own tables.
func (s *Store) Upserter() *Upserter { return s.up }

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) WriteRecalls(ctx context.Context, rows []models.RecallRow) (int, error) {
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = r.Values()
	}
	return s.write(ctx, TableRecalls, models.RecallColumns, vals, models.RecallIdentityColumn)
}

func (s *Store) WriteComplaints(ctx context.Context, rows []models.ComplaintRow) (int, error) {
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = r.Values()
	}
	return s.write(ctx, TableComplaints, models.ComplaintColumns, vals, models.ComplaintIdentityColumn)
}

// WriteRun records or overwrites one entry of the run ledger.
func (s *Store) WriteRun(ctx context.Context, run models.IngestRun) error {
	if run.RunID == "" {
		return fmt.Errorf("store: write run: empty run id")
	}
	_, err := s.up.Upsert(ctx, s.Dialect.Table(TableIngestRuns), models.IngestRunColumns, [][]any{run.Values()}, models.IngestRunIdentityColumn)
	return err
}

func (s *Store) write(ctx context.Context, name string, columns []string, rows [][]any, id string) (int, error) {
	table := s.Dialect.Table(name)
	n, err := s.up.Upsert(ctx, table, columns, rows, id)
	if err != nil {
		return 0, err
	}
	s.metrics.AddLoaded(table, n)
	return n, nil
}
