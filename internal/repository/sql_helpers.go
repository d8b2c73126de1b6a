package repository

import (
	"errors"
	"fmt"

	pulse_errors "pulse-chat/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// translate maps storage errors onto the domain error kinds. Anything that is
// not a missing row or a duplicate is reported as an unavailable dependency.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pulse_errors.ErrNotFound
	}
	if isUniqueViolation(err) {
		return pulse_errors.ErrAlreadyExists
	}
	return fmt.Errorf("%s: %w: %w", op, pulse_errors.ErrServiceUnavailable, err)
}

func pageOffset(page, limit int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	return (page - 1) * limit, limit
}
