package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"aeria-sms/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewDB opens the configured database. The default is an on-disk sqlite
// file; setting db_driver to "postgres" switches to pgx with db_url.
func NewDB(cfg *config.AppConfig, logger *logrus.Logger) (*sql.DB, error) {
	switch cfg.DBDriver {
	case "", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", cfg.DBPath)
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		logger.WithField("path", cfg.DBPath).Debug("sqlite opened")
		return db, nil
	case "postgres":
		db, err := sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}

// ApplyMigrations brings the schema up to date via goose.
func ApplyMigrations(ctx context.Context, db *sql.DB, driver string, logger *logrus.Logger) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	dialect := "sqlite3"
	if driver == "postgres" {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err == nil {
		logger.WithField("version", version).Debug("schema up to date")
	}
	return nil
}
