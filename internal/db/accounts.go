package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Admin is a stored administrator account. PasswordDigest is a bcrypt hash.
type Admin struct {
	ID             string
	Email          string
	PasswordDigest string
	CreatedAt      time.Time
}

// Accounts is the SQL-backed credential store.
type Accounts struct {
	db *sql.DB
}

func NewAccounts(db *sql.DB) *Accounts {
	return &Accounts{db: db}
}

// FindByEmail looks an admin up by email, ignoring case and surrounding space.
func (a *Accounts) FindByEmail(ctx context.Context, email string) (Admin, error) {
	email = normaliseEmail(email)
	if email == "" {
		return Admin{}, ErrNotFound
	}

	row := a.db.QueryRowContext(ctx, `
		SELECT id, email, password, created_at
		FROM admins
		WHERE lower(email) = $1
	`, email)
	return scanAdmin(row)
}

func (a *Accounts) FindByID(ctx context.Context, id string) (Admin, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Admin{}, ErrNotFound
	}

	row := a.db.QueryRowContext(ctx, `
		SELECT id, email, password, created_at
		FROM admins
		WHERE id = $1
	`, id)
	return scanAdmin(row)
}

// EnsureAdmin creates the account unless one with the same email exists.
// It reports whether a row was inserted.
func (a *Accounts) EnsureAdmin(ctx context.Context, email, passwordDigest string) (bool, error) {
	email = normaliseEmail(email)
	if email == "" || passwordDigest == "" {
		return false, errors.New("email and password digest are required")
	}

	res, err := a.db.ExecContext(ctx, `
		INSERT INTO admins (email, password)
		VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING
	`, email, passwordDigest)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanAdmin(row *sql.Row) (Admin, error) {
	var adm Admin
	err := row.Scan(&adm.ID, &adm.Email, &adm.PasswordDigest, &adm.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Admin{}, ErrNotFound
	}
	if err != nil {
		return Admin{}, err
	}
	return adm, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
