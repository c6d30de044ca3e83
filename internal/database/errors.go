package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
	"modernc.org/sqlite"
)

var (
	// ErrStoreUnavailable indicates the store could not be reached
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrValidationFailed indicates a record violated a schema constraint
	ErrValidationFailed = errors.New("validation failed")
)

// sqlite primary result code for constraint violations
const sqliteConstraint = 19

// classify tags driver errors with ErrStoreUnavailable or ErrValidationFailed
// so callers can branch with errors.Is. Other errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrValidationFailed) {
		return err
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if isConstraint(err) {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return err
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08: connection exception, 57P: operator intervention
		return pqErr.Code.Class() == "08" || pqErr.Code.Class() == "57"
	}
	return false
}

func isConstraint(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 23: integrity constraint violation, 22: data exception
		return pqErr.Code.Class() == "23" || pqErr.Code.Class() == "22"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqliteConstraint
	}
	return false
}

func validationError(err error) error {
	return fmt.Errorf("%w: %v", ErrValidationFailed, err)
}
