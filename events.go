package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is a calendar event owned by exactly one user. Start and End are
// absolute instants; clients receive them as RFC 3339 UTC.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Status      string
	Start       time.Time
	End         time.Time
	UserID      int64
}

// Editor rules: a title, end not before start, and at least 15 minutes.
const minEventDuration = 15 * time.Minute

func validateEvent(ev Event) error {
	if ev.Title == "" {
		return fail(KindValidation, "title is required")
	}
	if ev.End.Before(ev.Start) {
		return fail(KindValidation, "end date cannot be before start date")
	}
	if ev.End.Sub(ev.Start) < minEventDuration {
		return fail(KindValidation, "minimum duration is 15 minutes")
	}
	return nil
}

// PgEventStore persists events in Postgres.
type PgEventStore struct {
	pool *pgxpool.Pool
}

func NewPgEventStore(pool *pgxpool.Pool) *PgEventStore {
	return &PgEventStore{pool: pool}
}

const eventColumns = `id, title, description, location, status, start_at, end_at, user_id`

func (s *PgEventStore) Create(ctx context.Context, ev Event) (Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Status == "" {
		ev.Status = "scheduled"
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (id, title, description, location, status, start_at, end_at, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.Title, ev.Description, ev.Location, ev.Status, ev.Start, ev.End, ev.UserID,
	)
	if err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

func (s *PgEventStore) Get(ctx context.Context, id string) (Event, error) {
	var ev Event
	err := s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.Status,
		&ev.Start, &ev.End, &ev.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, fail(KindNotFound, "event not found")
	}
	if err != nil {
		return Event{}, fmt.Errorf("query event: %w", err)
	}
	return ev, nil
}

// List returns the user's events ordered by start. When from/to are both
// non-zero only events overlapping [from, to) are returned.
func (s *PgEventStore) List(ctx context.Context, userID int64, from, to time.Time) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE user_id = $1`
	args := []any{userID}
	if !from.IsZero() && !to.IsZero() {
		query += ` AND start_at < $3 AND end_at > $2`
		args = append(args, from, to)
	}
	query += ` ORDER BY start_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.Status,
			&ev.Start, &ev.End, &ev.UserID); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PgEventStore) Update(ctx context.Context, ev Event) (Event, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE events
		 SET title = $2, description = $3, location = $4, status = $5,
		     start_at = $6, end_at = $7, updated_at = now()
		 WHERE id = $1`,
		ev.ID, ev.Title, ev.Description, ev.Location, ev.Status, ev.Start, ev.End,
	)
	if err != nil {
		return Event{}, fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Event{}, fail(KindNotFound, "event not found")
	}
	return ev, nil
}

func (s *PgEventStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fail(KindNotFound, "event not found")
	}
	return nil
}
