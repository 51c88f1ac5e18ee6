package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"medshift/config"
	"medshift/core/utils"

	_ "modernc.org/sqlite"
)

// NewDB opens the configured database. Postgres is the production driver;
// sqlite backs the go test runtime only (ApplyMigrations rejects it
// outside of tests).
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if driver == "" {
		driver = "postgres"
	}
	switch driver {
	case "postgres":
		db, err := sql.Open("pgx-qm", cfg.DBURL)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(20)
		return db, nil
	case "sqlite":
		path := strings.TrimSpace(cfg.DBPath)
		if path == "" {
			path = "data/medshift.db"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, err
			}
		}
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// modernc sqlite serializes writes; a single connection avoids
		// SQLITE_BUSY storms under concurrent handlers.
		db.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}
