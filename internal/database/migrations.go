package database

import (
	"context"
	"embed"
	"io/fs"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for the given driver
func GetMigrationsFS(driver string) (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations/"+driver)
}

// Migrate applies every pending migration for the dialect db speaks. It
// returns the names of the migrations applied by this call.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	migrator, err := newMigrator(ctx, db)
	if err != nil {
		return nil, err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations")
	}

	if group.IsZero() {
		return nil, nil
	}

	applied := make([]string, 0, len(group.Migrations))
	for _, m := range group.Migrations {
		applied = append(applied, m.Name)
	}

	return applied, nil
}

// Rollback reverts the last applied migration group
func Rollback(ctx context.Context, db *bun.DB) error {
	migrator, err := newMigrator(ctx, db)
	if err != nil {
		return err
	}

	if _, err := migrator.Rollback(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to roll back migrations")
	}

	return nil
}

func newMigrator(ctx context.Context, db *bun.DB) (*migrate.Migrator, error) {
	source, err := GetMigrationsFS(DriverOf(db))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to locate migrations")
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(source); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load migrations")
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to init migration tables")
	}

	return migrator, nil
}
