package repository

import (
	"context"
	"database/sql/driver"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const mysqlTooManyConnections = 1040

// classify wraps err with op and marks it as ErrUnavailable when it
// points at connectivity or pool exhaustion rather than at the query.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if isUnavailable(err) {
		return errors.Wrap(&unavailableError{cause: err}, op)
	}
	return errors.Wrap(err, op)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08: connection exception, 53300: too_many_connections,
		// 57P03: cannot_connect_now, 57014: query_canceled.
		code := string(pqErr.Code)
		return strings.HasPrefix(code, "08") || code == "53300" || code == "57P03" || code == "57014"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlTooManyConnections
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

type unavailableError struct {
	cause error
}

func (e *unavailableError) Error() string {
	return ErrUnavailable.Error() + ": " + e.cause.Error()
}

func (e *unavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func (e *unavailableError) Unwrap() error {
	return e.cause
}
