package main

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	upperPattern = regexp.MustCompile(`[A-Z]`)
	digitPattern = regexp.MustCompile(`\d`)
	punctPattern = regexp.MustCompile(`[!@#$%^&*()_+\[\]{};':"\\|,.<>/?-]`)
)

// validateRegistration applies the registration rules: name of at least two
// characters, a plausible email, and a password of at least eight characters
// with an upper-case letter, a digit and a special character.
func validateRegistration(name, email, password string) error {
	if len(strings.TrimSpace(name)) < 2 {
		return fail(KindValidation, "name must have at least 2 characters")
	}
	if !emailPattern.MatchString(email) {
		return fail(KindValidation, "invalid email")
	}
	if len(password) < 8 || !upperPattern.MatchString(password) ||
		!digitPattern.MatchString(password) || !punctPattern.MatchString(password) {
		return fail(KindValidation,
			"password must have at least 8 characters, 1 upper-case letter, 1 digit and 1 special character")
	}
	return nil
}

const bcryptCost = 10

// PgUserStore persists users in Postgres.
type PgUserStore struct {
	pool *pgxpool.Pool
}

func NewPgUserStore(pool *pgxpool.Pool) *PgUserStore {
	return &PgUserStore{pool: pool}
}

// Create validates, hashes the password and inserts the user. A duplicate
// email is reported as a validation failure.
func (s *PgUserStore) Create(ctx context.Context, name, email, password string) (User, error) {
	if err := validateRegistration(name, email, password); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{Name: strings.TrimSpace(name), Email: email, PasswordHash: string(hash)}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		u.Name, u.Email, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, fail(KindValidation, "email already registered")
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *PgUserStore) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.findOne(ctx, `SELECT id, name, email, password_hash, created_at
		FROM users WHERE email = $1`, email)
}

func (s *PgUserStore) FindByID(ctx context.Context, id int64) (User, error) {
	return s.findOne(ctx, `SELECT id, name, email, password_hash, created_at
		FROM users WHERE id = $1`, id)
}

func (s *PgUserStore) findOne(ctx context.Context, query string, arg any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fail(KindNotFound, "user not found")
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}
