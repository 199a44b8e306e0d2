package rdbms

import (
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/dentametrics/pmsync/logger"
)

// MySQL server error numbers that are worth another attempt.
var mysqlTransientErrors = map[uint16]struct{}{
	1205: {}, // lock wait timeout exceeded
	1213: {}, // deadlock found when trying to get lock
	2006: {}, // server has gone away
	2013: {}, // lost connection during query
}

// PostgreSQL SQLSTATE codes that are worth another attempt. Connection
// exceptions (class 08) are matched by prefix below.
var pgTransientErrors = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
	"57P01": {}, // admin_shutdown
}

// IsTransientError returns true if the supplied error represents a temporary
// database condition where a retry of the failed operation may succeed.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) { // if this is a MySQL server error...
		_, ok := mysqlTransientErrors[myErr.Number]
		return ok
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) { // if this is a PostgreSQL server error...
		code := string(pgErr.Code)
		if strings.HasPrefix(code, "08") { // if this is a connection exception...
			return true
		}
		_, ok := pgTransientErrors[code]
		return ok
	}
	// Driver-level failures arrive as plain errors so fall back to text matching.
	txt := err.Error()
	for _, s := range []string{"connection refused", "connection reset", "broken pipe", "i/o timeout", "invalid connection", "bad connection"} {
		if strings.Contains(txt, s) {
			return true
		}
	}
	return false
}

// IsDateOverflowError returns true if the supplied error was caused by a value
// outside the range of the target column's date/time type. MySQL tables can
// hold dates like 0000-00-00 that PostgreSQL rejects at load time.
func IsDateOverflowError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		code := string(pgErr.Code)
		return code == "22008" || code == "22007" // datetime_field_overflow / invalid_datetime_format
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1292 // incorrect datetime value
	}
	return false
}

var retryBaseDelay = time.Second

// ExecuteWithRetry runs the supplied operation up to maxAttempts times, backing
// off between attempts. Only transient errors are retried; anything else is
// returned to the caller on first failure.
func ExecuteWithRetry(log logger.Logger, description string, maxAttempts int, op func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	delay := retryBaseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) { // if a retry can't help...
			return err
		}
		if attempt < maxAttempts { // if we have attempts left...
			log.Warn("transient error during ", description, " (attempt ", attempt, " of ", maxAttempts, "): ", err)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return errors.Wrapf(err, "%v failed after %v attempts", description, maxAttempts)
}
