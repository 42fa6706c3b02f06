package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lendconsole/dashboard/internal/dashboard"
)

// Querier is the subset of pgxpool.Pool the source needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const reportSQLQuery = `SELECT report_sql FROM stretchy_report WHERE report_name = $1`

// PGSource runs report SQL stored in the backend database directly, bypassing the HTTP API.
type PGSource struct {
	db Querier
}

// NewPGSource builds a source over a pool.
func NewPGSource(db Querier) *PGSource {
	return &PGSource{db: db}
}

// Fetch implements dashboard.Fetcher.
func (s *PGSource) Fetch(ctx context.Context, reportName string, officeID int64) (*dashboard.RawResult, error) {
	var sqlText string
	if err := s.db.QueryRow(ctx, reportSQLQuery, reportName).Scan(&sqlText); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownReport, reportName)
		}
		return nil, fmt.Errorf("report: load sql for %s: %w", reportName, err)
	}

	rows, err := s.db.Query(ctx, BindOffice(sqlText, officeID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, fmt.Errorf("report: run %s: %s (%s)", reportName, pgErr.Message, pgErr.Code)
		}
		return nil, fmt.Errorf("report: run %s: %w", reportName, err)
	}
	defer rows.Close()

	out := &dashboard.RawResult{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("report: scan %s: %w", reportName, err)
		}
		row := make(dashboard.Row, len(values))
		for i, v := range values {
			row[i] = normalize(v)
		}
		out.Data = append(out.Data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: read %s: %w", reportName, err)
	}
	return out, nil
}

// BindOffice substitutes the ${officeId} placeholder. The id is an integer so plain
// substitution is safe.
func BindOffice(sqlText string, officeID int64) string {
	return strings.ReplaceAll(sqlText, "${officeId}", strconv.FormatInt(officeID, 10))
}

// normalize turns driver-specific values into the plain types rows are read with.
func normalize(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case int16:
		return int64(val)
	case []byte:
		return string(val)
	default:
		return v
	}
}
