package tasks

import (
	"database/sql"
	"database/sql/driver"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/arifa/core"
)

// isKnownTransient reports whether an error from the bulk date-update path is
// one we expect occasionally and that could resolve on retry. The retryable
// set is deliberately explicit; everything else fails the task permanently.
func isKnownTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrTxDone) {
		return true
	}
	return core.IsValidationError(err)
}
