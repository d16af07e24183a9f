package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// Occurs when concurrent writers touch the same records.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrDuplicateSeq indicates a passage was written with a sequence number
	// that already exists, i.e. two writers shared a counter.
	ErrDuplicateSeq = errors.New("duplicate passage sequence")

	// ErrDimensionMismatch indicates a vector does not fit the HNSW index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
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
		case strings.Contains(msg, "Transaction conflict"):
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		case strings.Contains(msg, "passage_seq") && strings.Contains(msg, "already contains"):
			return fmt.Errorf("%w: %s", ErrDuplicateSeq, msg)
		case strings.Contains(msg, "dimension"):
			return fmt.Errorf("%w: %s", ErrDimensionMismatch, msg)
		}
	}

	return err
}
