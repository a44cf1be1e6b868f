package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/chatblocks/internal/store"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAlreadyExists indicates a record with the same ID already exists.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// This occurs when multiple concurrent operations attempt to modify the same records.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// wrapQueryError inspects a SurrealDB error and wraps it with the appropriate
// sentinel error if it's a known query error type. Returns the original error
// if it's not a QueryError or doesn't match known patterns.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		switch {
		case strings.Contains(msg, "already exists"):
			return fmt.Errorf("%w: %s", ErrAlreadyExists, msg)
		case strings.Contains(msg, "Transaction conflict"):
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		case strings.Contains(msg, "does not exist"):
			return fmt.Errorf("%w: %s", store.ErrNotFound, msg)
		}
	}

	return err
}
