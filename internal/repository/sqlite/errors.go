package sqlite

import (
	"errors"
	"fmt"
	"strings"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/cookshare/internal/apperror"
)

// isConstraintViolation reports whether err is an SQLite constraint failure
// (UNIQUE, FOREIGN KEY, CHECK, NOT NULL).
func isConstraintViolation(err error) bool {
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		// Extended result codes keep the primary code in the low byte.
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}

// mapWriteError turns a constraint failure into apperror.ErrConflict while
// keeping the driver error in the chain. Anything else passes through.
func mapWriteError(resource, id string, err error) error {
	if err == nil {
		return nil
	}
	if isConstraintViolation(err) {
		return fmt.Errorf("%w: %w", apperror.Conflict(resource, id), err)
	}
	return err
}
