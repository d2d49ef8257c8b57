package db

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	embedsql "github.com/nefron/examcheck/internal/sql"
)

// migrationLockKey is the advisory lock held while the schema is applied;
// `serve` replicas starting together take turns on it.
const migrationLockKey int64 = 0x6578616d63686b

// ApplyMigrations runs the embedded schema files in filename order inside one
// transaction. Every statement is IF NOT EXISTS, so a second run is a no-op.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) error {
	names, err := migrationNames()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migrations: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	for _, name := range names {
		if err := applyOne(ctx, tx, name); err != nil {
			return err
		}
		log.Debug().Str("migration", name).Msg("migration applied")
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}

	log.Info().Int("count", len(names)).Msg("migrations applied")
	return nil
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(embedsql.Migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func applyOne(ctx context.Context, tx pgx.Tx, name string) error {
	data, err := fs.ReadFile(embedsql.Migrations, "migrations/"+name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, string(data)); err != nil {
		return fmt.Errorf("execute migration %s: %w", name, err)
	}
	return nil
}
