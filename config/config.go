package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	AdminUsernames     []string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBMigrate   string
	// Redis for caching and token revocation; empty host disables it
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Gin framework configuration
	GinMode string
	GinPath string
	// Weekly analytics scheduler
	SnapshotEnabled bool
	SnapshotWeekday int
	SnapshotHour    int
	// Metrics
	MetricsEnabled bool
	ServiceName    string
}

var cfg AppConfig
var loaded bool

// envBindings maps viper keys to the environment variables that override them.
var envBindings = map[string]string{
	"app.port":                  "APP_PORT",
	"app.jwt_secret":            "JWT_SECRET",
	"app.token_ttl_hours":       "TOKEN_TTL_HOURS",
	"app.rate_limit_per_minute": "RATE_LIMIT_PER_MINUTE",
	"database.driver":           "DB_DRIVER",
	"database.uri":              "DATABASE_URI",
	"database.host":             "DB_HOST",
	"database.port":             "DB_PORT",
	"database.user":             "DB_USER",
	"database.password":         "DB_PASSWORD",
	"database.name":             "DB_NAME",
	"database.migrate":          "DB_MIGRATE",
	"redis.host":                "REDIS_HOST",
	"redis.port":                "REDIS_PORT",
	"redis.db":                  "REDIS_DB",
	"redis.password":            "REDIS_PASSWORD",
	"log.level":                 "LOG_LEVEL",
	"log.path":                  "LOG_PATH",
	"log.max_size_mb":           "LOG_MAX_SIZE_MB",
	"log.max_backups":           "LOG_MAX_BACKUPS",
	"log.max_age_days":          "LOG_MAX_AGE_DAYS",
	"log.compress":              "LOG_COMPRESS",
	"gin.mode":                  "GIN_MODE",
	"gin.path":                  "GIN_PATH",
	"analytics.enabled":         "SNAPSHOT_ENABLED",
	"analytics.weekday":         "SNAPSHOT_WEEKDAY",
	"analytics.hour":            "SNAPSHOT_HOUR",
	"metrics.enabled":           "METRICS_ENABLED",
	"metrics.service_name":      "SERVICE_NAME",
}

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: defaults -> config/config.json -> .env / environment variables
	_ = gotenv.Load()

	c, err := Parse(filepath.Join("config", "config.json"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Parse reads the JSON file at path (a missing file is fine), applies defaults
// and environment overrides and validates the result. It does not cache.
func Parse(path string) (AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return AppConfig{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return AppConfig{}, err
		}
	}

	c := AppConfig{
		AppPort:            v.GetString("app.port"),
		JWTSecret:          v.GetString("app.jwt_secret"),
		TokenTTLHours:      v.GetInt("app.token_ttl_hours"),
		RateLimitPerMinute: v.GetInt("app.rate_limit_per_minute"),
		AllowedOrigins:     readList(v, "app.allowed_origins", "CORS_ALLOWED_ORIGINS"),
		AdminUsernames:     readList(v, "app.admin_usernames", "ADMIN_USERNAMES"),
		DBDriver:           strings.ToLower(v.GetString("database.driver")),
		DatabaseURI:        v.GetString("database.uri"),
		DBHost:             v.GetString("database.host"),
		DBPort:             v.GetString("database.port"),
		DBUser:             v.GetString("database.user"),
		DBPassword:         v.GetString("database.password"),
		DBName:             v.GetString("database.name"),
		DBMigrate:          strings.ToLower(v.GetString("database.migrate")),
		RedisHost:          v.GetString("redis.host"),
		RedisPort:          v.GetInt("redis.port"),
		RedisDB:            v.GetInt("redis.db"),
		RedisPassword:      v.GetString("redis.password"),
		LogLevel:           v.GetString("log.level"),
		LogPath:            v.GetString("log.path"),
		LogMaxSizeMB:       v.GetInt("log.max_size_mb"),
		LogMaxBackups:      v.GetInt("log.max_backups"),
		LogMaxAgeDays:      v.GetInt("log.max_age_days"),
		LogCompress:        v.GetBool("log.compress"),
		GinMode:            v.GetString("gin.mode"),
		GinPath:            v.GetString("gin.path"),
		SnapshotEnabled:    v.GetBool("analytics.enabled"),
		SnapshotWeekday:    v.GetInt("analytics.weekday"),
		SnapshotHour:       v.GetInt("analytics.hour"),
		MetricsEnabled:     v.GetBool("metrics.enabled"),
		ServiceName:        v.GetString("metrics.service_name"),
	}

	if c.JWTSecret == "" {
		return c, errors.New("JWT_SECRET must be set in environment variables")
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return c, fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	switch c.DBMigrate {
	case "auto", "goose", "none":
	default:
		return c, fmt.Errorf("unsupported migrate mode %q", c.DBMigrate)
	}
	if c.SnapshotWeekday < 0 || c.SnapshotWeekday > 6 || c.SnapshotHour < 0 || c.SnapshotHour > 23 {
		return c, fmt.Errorf("invalid analytics schedule weekday=%d hour=%d", c.SnapshotWeekday, c.SnapshotHour)
	}
	return c, nil
}

// applyDefaults sets sane defaults for every key.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.token_ttl_hours", 72)
	v.SetDefault("app.rate_limit_per_minute", 60)
	v.SetDefault("app.allowed_origins", []string{"*"})
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "aiblog")
	v.SetDefault("database.migrate", "auto")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("gin.mode", "release")
	v.SetDefault("gin.path", "logs/go_gin.log")
	v.SetDefault("analytics.enabled", true)
	v.SetDefault("analytics.weekday", 0) // Sunday
	v.SetDefault("analytics.hour", 23)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.service_name", "aiblog")
}

// readList prefers a comma separated environment value over the JSON array.
func readList(v *viper.Viper, key, env string) []string {
	if raw := os.Getenv(env); raw != "" {
		return splitAndTrim(raw)
	}
	return v.GetStringSlice(key)
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
