package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrDuplicate marks an insert rejected by a unique index.
var ErrDuplicate = errors.New("duplicate record")

// IsUniqueViolation reports whether err came from a unique index, on either
// postgres or sqlite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sqlstate 23505") || strings.Contains(msg, "unique constraint failed")
}

// Duplicate wraps a unique violation in ErrDuplicate and passes other errors
// through unchanged.
func Duplicate(err error, what string) error {
	if !IsUniqueViolation(err) {
		return err
	}
	return fmt.Errorf("%w: %s", ErrDuplicate, what)
}
