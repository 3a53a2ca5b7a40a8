// Package pg loads dated market series and cashflow tables from Postgres.
// Queries return a date in the first column; every following numeric column
// becomes a schedule column of the same name.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/meenmo/tvm/cashflow"
)

// Store wraps a Postgres connection used for market-data reads.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open connects and pings. The logger may be nil.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pg.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pg.Open: ping: %w", err)
	}
	log.Info("connected to postgres")
	return &Store{db: db, log: log}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadCashflow runs a query whose first column is a date and builds a
// schedule from the remaining float columns, one schedule column per result
// column. Duplicate dates in the result set are rejected by the schedule
// constructor.
func (s *Store) LoadCashflow(ctx context.Context, query string, args ...any) (*cashflow.Cashflow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("LoadCashflow: query: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("LoadCashflow: columns: %w", err)
	}
	if len(names) < 2 {
		return nil, fmt.Errorf("LoadCashflow: query must select a date and at least one value column")
	}

	var out []cashflow.Row
	for rows.Next() {
		var date time.Time
		vals := make([]sql.NullFloat64, len(names)-1)
		dest := make([]any, len(names))
		dest[0] = &date
		for i := range vals {
			dest[i+1] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("LoadCashflow: scan: %w", err)
		}
		values := make(map[string]float64, len(vals))
		for i, v := range vals {
			if v.Valid {
				values[names[i+1]] = v.Float64
			}
		}
		out = append(out, cashflow.Row{Date: date, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LoadCashflow: rows: %w", err)
	}
	s.log.Info("loaded cashflow rows", zap.Int("rows", len(out)))
	return cashflow.FromRows(out)
}

// LoadSeries runs a query whose first column is a date and second a float,
// returning the dates and values in result order.
func (s *Store) LoadSeries(ctx context.Context, query string, args ...any) ([]time.Time, []float64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("LoadSeries: query: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	var values []float64
	for rows.Next() {
		var d time.Time
		var v float64
		if err := rows.Scan(&d, &v); err != nil {
			return nil, nil, fmt.Errorf("LoadSeries: scan: %w", err)
		}
		dates = append(dates, d)
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("LoadSeries: rows: %w", err)
	}
	s.log.Info("loaded series", zap.Int("rows", len(dates)))
	return dates, values, nil
}
