package rawlayer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"recallwatch/internal/identity"
	"recallwatch/internal/store"
	"recallwatch/pkg/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 500
)

// Repo reads back what the pipeline wrote to the raw layer.
type Repo struct {
	DB      *sql.DB
	Dialect store.Dialect
}

type ListQuery struct {
	Make   string // case-insensitive prefix
	Limit  int
	Offset int
}

func (q ListQuery) normalized() ListQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func NewRepo(db *sql.DB, d store.Dialect) *Repo {
	return &Repo{DB: db, Dialect: d}
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

const recallSelect = `SELECT recall_pk, source, source_id, make, model, model_year, component,
	report_date, source_updated_at, ingested_at, raw_payload FROM `

const complaintSelect = `SELECT complaint_pk, source, source_id, odi_number, make, model, model_year,
	component, incident_date, received_date, state, source_updated_at, ingested_at, raw_payload FROM `

const runSelect = `SELECT run_id, started_at, finished_at, make, start_date, end_date,
	recalls_extracted, recalls_loaded, complaints_extracted, complaints_loaded,
	complaints_skipped, status, error FROM `

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repo) CountRecalls(ctx context.Context, q ListQuery) (int, error) {
	return r.count(ctx, store.TableRecalls, q)
}

func (r *Repo) ListRecalls(ctx context.Context, q ListQuery) ([]models.RecallRow, error) {
	q = q.normalized()
	sqlStr, args := r.buildListSQL(recallSelect, store.TableRecalls, models.RecallIdentityColumn, q)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list recalls: %w", err)
	}
	defer rows.Close()

	out := make([]models.RecallRow, 0, q.Limit)
	for rows.Next() {
		rec, err := scanRecall(rows)
		if err != nil {
			return nil, fmt.Errorf("list recalls scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// GetRecall returns nil, nil when pk is unknown.
func (r *Repo) GetRecall(ctx context.Context, pk string) (*models.RecallRow, error) {
	row := r.DB.QueryRowContext(ctx,
		recallSelect+r.Dialect.Table(store.TableRecalls)+" WHERE recall_pk = "+r.Dialect.Placeholder(1), pk)
	rec, err := scanRecall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recall: %w", err)
	}
	return &rec, nil
}

func (r *Repo) CountComplaints(ctx context.Context, q ListQuery) (int, error) {
	return r.count(ctx, store.TableComplaints, q)
}

func (r *Repo) ListComplaints(ctx context.Context, q ListQuery) ([]models.ComplaintRow, error) {
	q = q.normalized()
	sqlStr, args := r.buildListSQL(complaintSelect, store.TableComplaints, models.ComplaintIdentityColumn, q)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()

	out := make([]models.ComplaintRow, 0, q.Limit)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("list complaints scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) GetComplaint(ctx context.Context, pk string) (*models.ComplaintRow, error) {
	row := r.DB.QueryRowContext(ctx,
		complaintSelect+r.Dialect.Table(store.TableComplaints)+" WHERE complaint_pk = "+r.Dialect.Placeholder(1), pk)
	c, err := scanComplaint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	return &c, nil
}

// ListRuns returns ledger entries, most recent first. q.Make filters on the
// run's make exactly (case-insensitive).
func (r *Repo) ListRuns(ctx context.Context, q ListQuery) ([]models.IngestRun, error) {
	q = q.normalized()

	var b strings.Builder
	var args []any
	b.WriteString(runSelect + r.Dialect.Table(store.TableIngestRuns))
	if m := strings.TrimSpace(q.Make); m != "" {
		args = append(args, strings.ToUpper(m))
		b.WriteString(" WHERE UPPER(make) = " + r.Dialect.Placeholder(len(args)))
	}
	args = append(args, q.Limit, q.Offset)
	fmt.Fprintf(&b, " ORDER BY started_at DESC, run_id LIMIT %s OFFSET %s",
		r.Dialect.Placeholder(len(args)-1), r.Dialect.Placeholder(len(args)))

	rows, err := r.DB.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.IngestRun, 0, q.Limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs scan: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) GetRun(ctx context.Context, id string) (*models.IngestRun, error) {
	row := r.DB.QueryRowContext(ctx,
		runSelect+r.Dialect.Table(store.TableIngestRuns)+" WHERE run_id = "+r.Dialect.Placeholder(1), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

func (r *Repo) count(ctx context.Context, table string, q ListQuery) (int, error) {
	sqlStr, args := r.buildWhere("SELECT COUNT(*) FROM "+r.Dialect.Table(table), q)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

func (r *Repo) buildWhere(base string, q ListQuery) (string, []any) {
	var args []any
	if m := strings.TrimSpace(q.Make); m != "" {
		args = append(args, strings.ToUpper(m)+"%")
		base += " WHERE UPPER(make) LIKE " + r.Dialect.Placeholder(len(args))
	}
	return base, args
}

func (r *Repo) buildListSQL(sel, table, pk string, q ListQuery) (string, []any) {
	sqlStr, args := r.buildWhere(sel+r.Dialect.Table(table), q)
	args = append(args, q.Limit, q.Offset)
	sqlStr += fmt.Sprintf(" ORDER BY ingested_at DESC, %s LIMIT %s OFFSET %s",
		pk, r.Dialect.Placeholder(len(args)-1), r.Dialect.Placeholder(len(args)))
	return sqlStr, args
}

func scanRecall(s scanner) (models.RecallRow, error) {
	var (
		rec                   models.RecallRow
		sourceID, mk, model   sql.NullString
		component, reportDate sql.NullString
		modelYear             sql.NullInt64
		updatedAt             sql.NullTime
		payload               []byte
	)
	if err := s.Scan(&rec.PK, &rec.Source, &sourceID, &mk, &model, &modelYear, &component,
		&reportDate, &updatedAt, &rec.IngestedAt, &payload); err != nil {
		return rec, err
	}
	rec.SourceID = optString(sourceID)
	rec.Make = optString(mk)
	rec.Model = optString(model)
	rec.ModelYear = optInt(modelYear)
	rec.Component = optString(component)
	rec.ReportDate = optDate(reportDate)
	rec.SourceUpdatedAt = optTime(updatedAt)
	rec.IngestedAt = rec.IngestedAt.UTC()
	rec.Payload = append([]byte(nil), payload...)
	return rec, nil
}

func scanComplaint(s scanner) (models.ComplaintRow, error) {
	var (
		c                             models.ComplaintRow
		sourceID, odi, mk, model      sql.NullString
		component, incident, received sql.NullString
		state                         sql.NullString
		modelYear                     sql.NullInt64
		updatedAt                     sql.NullTime
		payload                       []byte
	)
	if err := s.Scan(&c.PK, &c.Source, &sourceID, &odi, &mk, &model, &modelYear, &component,
		&incident, &received, &state, &updatedAt, &c.IngestedAt, &payload); err != nil {
		return c, err
	}
	c.SourceID = optString(sourceID)
	c.ODINumber = optString(odi)
	c.Make = optString(mk)
	c.Model = optString(model)
	c.ModelYear = optInt(modelYear)
	c.Component = optString(component)
	c.IncidentDate = optDate(incident)
	c.ReceivedDate = optDate(received)
	c.State = optString(state)
	c.SourceUpdatedAt = optTime(updatedAt)
	c.IngestedAt = c.IngestedAt.UTC()
	c.Payload = append([]byte(nil), payload...)
	return c, nil
}

func scanRun(s scanner) (models.IngestRun, error) {
	var (
		run                 models.IngestRun
		finished            sql.NullTime
		start, end, errText sql.NullString
	)
	if err := s.Scan(&run.RunID, &run.StartedAt, &finished, &run.Make, &start, &end,
		&run.RecallsExtracted, &run.RecallsLoaded, &run.ComplaintsExtracted, &run.ComplaintsLoaded,
		&run.ComplaintsSkipped, &run.Status, &errText); err != nil {
		return run, err
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = optTime(finished)
	run.StartDate = start.String
	run.EndDate = end.String
	run.Error = errText.String
	return run, nil
}

func optString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func optInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// optDate accepts both stored forms: sqlite's YYYY-MM-DD text and the
// RFC 3339 string database/sql produces from a postgres DATE.
func optDate(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	return identity.ParseDate(ns.String)
}

func optTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
