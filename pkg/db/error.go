package db

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// IsDuplicateKeyErr reports whether err is a unique-constraint violation on
// any of the supported dialects.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value violates unique constraint"): // postgres via pgx
		return true
	case strings.Contains(msg, "Error 1062"): // mysql
		return true
	case strings.Contains(msg, "UNIQUE constraint failed"): // sqlite
		return true
	}
	return false
}
