// Package migrations embeds the versioned schema for each supported dialect
// and applies it with goose.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed mysql/*.sql postgres/*.sql sqlite/*.sql
var files embed.FS

// dialects maps a database driver name to the goose dialect and directory.
var dialects = map[string]struct{ goose, dir string }{
	"mysql":    {"mysql", "mysql"},
	"postgres": {"postgres", "postgres"},
	"sqlite":   {"sqlite3", "sqlite"},
}

type gooseLogger struct{ s *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...interface{}) { l.s.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.s.Fatalf(format, v...) }

func prepare(driver string, logger *zap.Logger) (string, error) {
	d, ok := dialects[driver]
	if !ok {
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	goose.SetBaseFS(files)
	goose.SetLogger(gooseLogger{logger.Named("goose").Sugar()})
	if err := goose.SetDialect(d.goose); err != nil {
		return "", err
	}
	return d.dir, nil
}

// Up applies every pending migration for driver.
func Up(db *sql.DB, driver string, logger *zap.Logger) error {
	dir, err := prepare(driver, logger)
	if err != nil {
		return err
	}
	return goose.Up(db, dir)
}

// Down rolls back the most recent migration.
func Down(db *sql.DB, driver string, logger *zap.Logger) error {
	dir, err := prepare(driver, logger)
	if err != nil {
		return err
	}
	return goose.Down(db, dir)
}

// Version returns the current schema version.
func Version(db *sql.DB, driver string, logger *zap.Logger) (int64, error) {
	if _, err := prepare(driver, logger); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db)
}
