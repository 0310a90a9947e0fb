package revision

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error kinds reported by the Engine. Returned errors wrap exactly one of them.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrInvalidReference = errors.New("invalid reference")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnavailable      = errors.New("storage unavailable")
)

var kinds = []error{ErrNotFound, ErrConflict, ErrUnauthenticated, ErrInvalidReference, ErrInvalidInput, ErrUnavailable}

// postgres SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// Classify maps a storage error onto the error kinds of the Engine.
// Errors already carrying a kind are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return err
		}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUniqueViolation:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case sqlStateForeignKeyViolation:
			return fmt.Errorf("%w: %v", ErrInvalidReference, err)
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Retryable reports whether the failed operation may be repeated from scratch.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
