package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"recallwatch/internal/logging"
)

// DefaultChunkSize is the number of rows per INSERT statement.
const DefaultChunkSize = 500

// identifiers may carry one schema qualifier: raw.recalls
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Upserter writes batches of rows with insert-or-replace-by-key semantics.
type Upserter struct {
	ChunkSize int

	db      *sql.DB
	dialect Dialect
	log     logrus.FieldLogger
}

func NewUpserter(db *sql.DB, d Dialect, chunkSize int, log logrus.FieldLogger) *Upserter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Upserter{ChunkSize: chunkSize, db: db, dialect: d, log: logging.OrDiscard(log)}
}

// Upsert inserts rows into table, replacing every non-identity column of
// rows whose identityColumn value already exists. Each row must have one
// value per column, in columns order.
//
// All chunks run in one transaction: either every row is written or none
// is. Rows sharing an identity value collapse to the last one. The returned
// count is the number of distinct rows written.
func (u *Upserter) Upsert(ctx context.Context, table string, columns []string, rows [][]any, identityColumn string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	idIdx, err := validate(table, columns, rows, identityColumn)
	if err != nil {
		return 0, &PersistenceError{Op: "validate", Table: table, Err: err}
	}
	rows = dedupe(rows, idIdx)

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &PersistenceError{Op: "begin", Table: table, Err: err}
	}
	defer tx.Rollback()

	prefix := insertPrefix(table, columns)
	suffix := conflictClause(columns, identityColumn)

	for start := 0; start < len(rows); start += u.ChunkSize {
		end := start + u.ChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		query, args := u.buildChunk(prefix, suffix, len(columns), chunk)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, &PersistenceError{Op: "exec", Table: table, Err: fmt.Errorf("rows %d-%d: %w", start, end-1, err)}
		}
		u.log.WithFields(logrus.Fields{"table": table, "offset": start, "rows": len(chunk)}).Debug("chunk written")
	}

	if err := tx.Commit(); err != nil {
		return 0, &PersistenceError{Op: "commit", Table: table, Err: err}
	}

	u.log.WithFields(logrus.Fields{"table": table, "rows": len(rows)}).Info("upsert committed")
	return len(rows), nil
}

func (u *Upserter) buildChunk(prefix, suffix string, width int, chunk [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString(prefix)

	args := make([]any, 0, width*len(chunk))
	n := 0
	for i, row := range chunk {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			n++
			b.WriteString(u.dialect.Placeholder(n))
			args = append(args, v)
		}
		b.WriteByte(')')
	}
	b.WriteString(suffix)
	return b.String(), args
}

func insertPrefix(table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))
}

func conflictClause(columns []string, identityColumn string) string {
	var sets []string
	for _, c := range columns {
		if c == identityColumn {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	if len(sets) == 0 {
		return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", identityColumn)
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", identityColumn, strings.Join(sets, ", "))
}

// validate checks every identifier that is interpolated into SQL and the
// shape of rows. It returns the index of the identity column.
func validate(table string, columns []string, rows [][]any, identityColumn string) (int, error) {
	if !identRe.MatchString(table) {
		return -1, fmt.Errorf("invalid table name %q", table)
	}
	if len(columns) == 0 {
		return -1, fmt.Errorf("no columns")
	}

	idIdx := -1
	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		if !identRe.MatchString(c) || strings.Contains(c, ".") {
			return -1, fmt.Errorf("invalid column name %q", c)
		}
		if seen[c] {
			return -1, fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = true
		if c == identityColumn {
			idIdx = i
		}
	}
	if idIdx < 0 {
		return -1, fmt.Errorf("identity column %q not in columns", identityColumn)
	}

	for i, r := range rows {
		if len(r) != len(columns) {
			return -1, fmt.Errorf("row %d has %d values, want %d", i, len(r), len(columns))
		}
	}
	return idIdx, nil
}

// dedupe keeps the last row for each identity value, at the position of the
// first occurrence.
func dedupe(rows [][]any, idIdx int) [][]any {
	pos := make(map[string]int, len(rows))
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		k := fmt.Sprint(r[idIdx])
		if i, ok := pos[k]; ok {
			out[i] = r
			continue
		}
		pos[k] = len(out)
		out = append(out, r)
	}
	return out
}
