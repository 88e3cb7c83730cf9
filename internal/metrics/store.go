package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"weekly-planner/internal/database"
)

// OutcomeOK is recorded for operations that completed without error.
const OutcomeOK = "ok"

// ExecutionMetric records metadata for a single core operation.
type ExecutionMetric struct {
	Operation string
	Outcome   string
	LatencyMS int64
	Timestamp time.Time
}

// Store handles persistence of metrics to the relational store.
type Store struct {
	q *database.Querier
}

// NewStore initializes the Store with an existing database pool.
func NewStore(db *database.DB) *Store {
	return &Store{q: db.Querier()}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()

	outcome := m.Outcome
	if outcome == "" {
		outcome = OutcomeOK
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO execution_metrics (operation, outcome, latency_ms, day, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		m.Operation, outcome, m.LatencyMS, ts.Format(time.DateOnly), ts.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record metric: %w", err)
	}
	return nil
}

// RecordOperation records one finished operation.
func (s *Store) RecordOperation(ctx context.Context, operation, outcome string, latency time.Duration) error {
	return s.Record(ctx, ExecutionMetric{
		Operation: operation,
		Outcome:   outcome,
		LatencyMS: latency.Milliseconds(),
	})
}

// DailyUsage represents operation totals for a single day.
type DailyUsage struct {
	Date         string
	Operations   int
	Failures     int
	AvgLatencyMS int64
}

// GetDailyUsage retrieves usage for the last N days, most recent day first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().AddDate(0, 0, -days).Unix()
	rows, err := s.q.QueryContext(ctx,
		`SELECT day, COUNT(*), SUM(CASE WHEN outcome = ? THEN 0 ELSE 1 END), SUM(latency_ms)
		 FROM execution_metrics
		 WHERE recorded_at >= ?
		 GROUP BY day
		 ORDER BY day DESC`,
		OutcomeOK, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	results := []DailyUsage{}
	for rows.Next() {
		var (
			u       DailyUsage
			latency sql.NullFloat64
		)
		if err := rows.Scan(&u.Date, &u.Operations, &u.Failures, &latency); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		if latency.Valid && u.Operations > 0 {
			u.AvgLatencyMS = int64(latency.Float64) / int64(u.Operations)
		}
		results = append(results, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily usage: %w", err)
	}
	return results, nil
}

// Cleanup removes records older than the specified number of days and returns how
// many were removed.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -olderThanDays).Unix()
	res, err := s.q.ExecContext(ctx, `DELETE FROM execution_metrics WHERE recorded_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up metrics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read cleanup result: %w", err)
	}
	return n, nil
}
