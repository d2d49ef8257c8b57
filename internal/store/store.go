// Package store persists the catalog (clinics, exam dictionary, routines,
// profiles), manual overrides and the audit trail of analysis runs in
// Postgres.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/nefron/examcheck/internal/catalog"
)

var (
	ErrRoutineNotFound = catalog.ErrRoutineNotFound
	ErrProfileNotFound = catalog.ErrProfileNotFound
	// ErrRoutineInUse is returned when deleting a routine a profile still uses.
	ErrRoutineInUse = errors.New("routine is used by a profile")
	// ErrRoutineExists is returned when copying onto an existing name.
	ErrRoutineExists = errors.New("routine already exists")
)

// Postgres error codes the store maps to sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Store is the Postgres-backed repository.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func New(pool *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// inTx runs fn inside a transaction, committing when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
