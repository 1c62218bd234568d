package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// dayKey is the calendar-day bucket for the quota, in the server's zone.
func dayKey(now time.Time) string {
	return now.Format("2006-01-02")
}

// requestCounter is the request-log surface the quota needs. Backed by
// Postgres in production, by a fake in tests.
type requestCounter interface {
	CountOnDay(ctx context.Context, userID int64, day string) (int, error)
	Log(ctx context.Context, userID int64, day string) error
}

// dailyQuota caps language-model requests per user per calendar day.
type dailyQuota struct {
	counter requestCounter
	limit   int
}

// Allow applies the check-then-log pattern. Two simultaneous requests near
// the ceiling can both pass the check and both log; the quota is an advisory
// daily cap, not a hard security boundary.
func (q *dailyQuota) Allow(ctx context.Context, userID int64, now time.Time) error {
	day := dayKey(now)
	n, err := q.counter.CountOnDay(ctx, userID, day)
	if err != nil {
		return fmt.Errorf("count requests: %w", err)
	}
	if n >= q.limit {
		return fail(KindRateLimitExceeded, "daily request limit reached, try again tomorrow")
	}
	if err := q.counter.Log(ctx, userID, day); err != nil {
		return fmt.Errorf("log request: %w", err)
	}
	return nil
}

// PgRequestLog stores one row per language-model request, keyed by user and
// calendar day.
type PgRequestLog struct {
	pool *pgxpool.Pool
}

func NewPgRequestLog(pool *pgxpool.Pool) *PgRequestLog {
	return &PgRequestLog{pool: pool}
}

func (l *PgRequestLog) CountOnDay(ctx context.Context, userID int64, day string) (int, error) {
	var n int
	err := l.pool.QueryRow(ctx,
		`SELECT count(*) FROM ai_requests WHERE user_id = $1 AND date = $2`,
		userID, day,
	).Scan(&n)
	return n, err
}

func (l *PgRequestLog) Log(ctx context.Context, userID int64, day string) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO ai_requests (user_id, date) VALUES ($1, $2)`,
		userID, day,
	)
	return err
}

// PurgeBefore removes rows from days before the given instant's date.
func (l *PgRequestLog) PurgeBefore(ctx context.Context, now time.Time) (int64, error) {
	tag, err := l.pool.Exec(ctx,
		`DELETE FROM ai_requests WHERE date < $1`, dayKey(now),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
