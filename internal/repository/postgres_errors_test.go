package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassifyPgError(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
	deadlock := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}

	// retryable commit failures surface as ErrConflict, never as anything
	// a caller could mistake for an out-of-stock rejection
	assert.ErrorIs(t, classifyPgError(serialization), ErrConflict)
	assert.ErrorIs(t, classifyPgError(deadlock), ErrConflict)
	assert.NotErrorIs(t, classifyPgError(serialization), ErrDuplicate)

	assert.ErrorIs(t, classifyPgError(unique), ErrDuplicate)
	assert.NotErrorIs(t, classifyPgError(unique), ErrConflict)

	// wrapped driver errors are still classified
	wrapped := fmt.Errorf("failed to commit transaction: %w", serialization)
	assert.ErrorIs(t, classifyPgError(wrapped), ErrConflict)

	// everything else passes through untouched
	plain := errors.New("context canceled")
	assert.Equal(t, plain, classifyPgError(plain))
	unknown := &pgconn.PgError{Code: "22012", Message: "division by zero"}
	assert.NotErrorIs(t, classifyPgError(unknown), ErrConflict)
}
