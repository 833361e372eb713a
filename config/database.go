package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/aiblog/migrations"
)

var db *gorm.DB

var defaultPorts = map[string]string{
	"mysql":    "3306",
	"postgres": "5432",
}

// DSN builds the driver specific connection string. DatabaseURI wins when set.
func DSN(cfg AppConfig) string {
	if cfg.DatabaseURI != "" {
		return cfg.DatabaseURI
	}
	port := cfg.DBPort
	if port == "" {
		port = defaultPorts[cfg.DBDriver]
	}
	switch cfg.DBDriver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=Local",
			cfg.DBHost, port, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	case "sqlite":
		return cfg.DBName + ".db"
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, port, cfg.DBName)
	}
}

func dialector(cfg AppConfig) (gorm.Dialector, error) {
	dsn := DSN(cfg)
	switch cfg.DBDriver {
	case "mysql", "":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
}

// Open connects to the configured database, tunes the pool and pings it.
func Open(cfg AppConfig) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	// Derive the gorm level from the app level; only slow queries are worth a warning.
	gLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(d, &gorm.Config{
		Logger:                                   gLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		// recycle idle connections before the server's wait_timeout does
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return conn, nil
}

// Migrate brings the schema up to date according to cfg.DBMigrate.
func Migrate(conn *gorm.DB, cfg AppConfig, zl *zap.Logger, modelDefs ...interface{}) error {
	switch cfg.DBMigrate {
	case "none":
		return nil
	case "goose":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return migrations.Up(sqlDB, cfg.DBDriver, zl)
	default:
		for _, model := range modelDefs {
			// Only create missing tables; existing schemas are left alone.
			if conn.Migrator().HasTable(model) {
				continue
			}
			if err := conn.AutoMigrate(model); err != nil {
				return fmt.Errorf("auto migration failed for %T: %w", model, err)
			}
		}
		return nil
	}
}

// InitDatabase connects using the loaded configuration and migrates the schema.
// Failures are fatal.
func InitDatabase(zl *zap.Logger, modelDefs ...interface{}) *gorm.DB {
	if db != nil {
		return db
	}

	cfg := Get()
	conn, err := Open(cfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	if err := Migrate(conn, cfg, zl, modelDefs...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	db = conn
	return db
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL; use with caution
		return logger.Info
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// DB provides access to initialized gorm DB instance.
func DB() *gorm.DB {
	if db == nil {
		log.Fatal("database not initialized, call InitDatabase first")
	}
	return db
}
