package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapInsertErrorDuplicateKey(t *testing.T) {
	// pgx wraps driver errors; the mapping must see through the chain.
	dup := fmt.Errorf("exec insert: %w", &pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, mapInsertError(dup), ErrIdempotencyConflict)
}

func TestMapInsertErrorPassesOtherErrorsThrough(t *testing.T) {
	fk := fmt.Errorf("exec insert: %w", &pgconn.PgError{Code: "23503"})
	require.NotErrorIs(t, mapInsertError(fk), ErrIdempotencyConflict)
	require.Equal(t, fk, mapInsertError(fk))

	plain := errors.New("connection reset")
	require.Equal(t, plain, mapInsertError(plain))
}
