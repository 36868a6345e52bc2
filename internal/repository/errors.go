// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors. For example, ErrNotFound
// covers a missing row, while ErrVersionConflict signals that another
// writer changed a listing between read and update.
package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when the requested row does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert or update collides with a
// unique constraint not covered by a more specific error.
var ErrConflict = errors.New("conflict")

// ErrVersionConflict is returned by optimistic updates when the row's
// version no longer matches the one the caller read.
var ErrVersionConflict = errors.New("listing was modified concurrently")

var (
	ErrEmailExists = errors.New("email already exists")
	ErrPhoneExists = errors.New("phone already exists")
)

// uniqueViolation reports the violated constraint name when err is a
// Postgres unique_violation (SQLSTATE 23505).
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// notFound maps sql.ErrNoRows to ErrNotFound and passes other errors through.
// An id that is not a UUID (SQLSTATE 22P02) cannot name a row either.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return ErrNotFound
	}
	return err
}
