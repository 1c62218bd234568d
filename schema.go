package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ensureSchema creates all tables and indexes. Statements are idempotent and
// run on every boot.
func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{

		// ── Users ─────────────────────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS users (
			id            BIGSERIAL PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		// ── Events ────────────────────────────────────────────────────────────
		// One owner per event. Instants are timestamptz; clients always see
		// them normalized to UTC.
		`CREATE TABLE IF NOT EXISTS events (
			id          UUID PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location    TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'scheduled',
			start_at    TIMESTAMPTZ NOT NULL,
			end_at      TIMESTAMPTZ NOT NULL,
			user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS events_user_start_idx
			ON events (user_id, start_at)`,

		// ── Request log ───────────────────────────────────────────────────────
		// One row per language-model request, keyed by user and calendar day.
		// The janitor purges rows from previous days; the day key is what
		// enforces the quota, not row age.
		`CREATE TABLE IF NOT EXISTS ai_requests (
			id         BIGSERIAL PRIMARY KEY,
			user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			date       DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS ai_requests_user_day_idx
			ON ai_requests (user_id, date)`,
	}

	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("schema error: %w\nstmt: %.80s", err, s)
		}
	}
	return nil
}
