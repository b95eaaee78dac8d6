package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketdash/config"

	"github.com/lib/pq"
)

const adminTimeout = 10 * time.Second

// CreateDatabase creates cfg.DBName through the admin "postgres" database
// when it is missing. The name is quoted as an identifier.
func CreateDatabase(cfg config.PostgresConfig) error {
	if cfg.DBName == "" || len(cfg.DBName) > 63 {
		return fmt.Errorf("invalid database name %q", cfg.DBName)
	}
	for _, r := range cfg.DBName {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("invalid database name %q", cfg.DBName)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	admin, err := sql.Open("postgres", cfg.AdminDSN())
	if err != nil {
		return fmt.Errorf("open admin connection: %w", err)
	}
	defer admin.Close()

	var exists bool
	err = admin.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, cfg.DBName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("look up database %s: %w", cfg.DBName, err)
	}
	if exists {
		return nil
	}

	if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(cfg.DBName)); err != nil {
		return fmt.Errorf("create database %s: %w", cfg.DBName, err)
	}
	return nil
}
