// Package migrations embeds the database schema and applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql mysql/*.sql
var files embed.FS

// Up applies all pending migrations for the given driver ("postgres" or "mysql").
// For mysql, dsn is a go-sql-driver DSN such as "user:pass@tcp(host:3306)/db".
func Up(driver, dsn string) error {
	var dir, databaseURL string
	switch driver {
	case "postgres":
		dir, databaseURL = "postgres", dsn
	case "mysql":
		dir, databaseURL = "mysql", "mysql://"+dsn
	default:
		return fmt.Errorf("migrations are not supported for driver %q", driver)
	}

	src, err := iofs.New(files, dir)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
