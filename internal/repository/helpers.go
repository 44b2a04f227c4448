// Package repository implements the domain store ports using SQLite.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
)

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// mapDBError classifies driver errors into domain errors: a unique index
// violation is an identifier collision, not a generic conflict.
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound("resource not found")
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrUniqueness("identifier already in use within this tenant")
	}
	return err
}
