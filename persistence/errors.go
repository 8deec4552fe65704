package persistence

import (
	"errors"

	"github.com/lib/pq"

	"github.com/wfunc/guessduel/apperr"
)

// PostgreSQL error codes that mean "lost a race, safe to retry".
var retryableCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// translateError maps lock and serialization failures to apperr.ErrConflict.
// Everything else passes through untouched.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && retryableCodes[pqErr.Code] {
		return apperr.WithCause(apperr.ErrConflict, err)
	}
	return err
}

// IsConflict reports whether err is a retry-safe concurrency failure.
func IsConflict(err error) bool {
	return errors.Is(err, apperr.ErrConflict)
}
