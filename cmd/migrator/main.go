package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const (
	migrationUp   = "up"
	migrationDown = "down"
)

func mustMigrateUp(m *migrate.Migrate) {
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}
		panic(err)
	}
	fmt.Println("migrations applied successfully")
}

func mustMigrateDown(m *migrate.Migrate) {
	if err := m.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to revert")
			return
		}
		panic(err)
	}
	fmt.Println("migrations reverted successfully")
}

func main() {
	var dbURL, migrationsPath, migrationType string
	flag.StringVar(&migrationType, "migration-type", migrationUp, "up or down")
	flag.StringVar(&dbURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection URL")
	flag.StringVar(&migrationsPath, "migrations-path", "migrations", "path to migrations")
	flag.Parse()

	if dbURL == "" {
		panic("database-url or DATABASE_URL is required")
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), dbURL)
	if err != nil {
		panic(err)
	}
	defer m.Close()

	switch migrationType {
	case migrationDown:
		mustMigrateDown(m)
	case migrationUp:
		mustMigrateUp(m)
	default:
		panic(fmt.Sprintf("unknown migration-type %q", migrationType))
	}
}
