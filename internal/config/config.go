package config

import (
	"time"

	"github.com/spf13/viper"
)

type StoreDriver string

const (
	StoreDriverSQLite   StoreDriver = "sqlite"   // Embedded SQLite file (default)
	StoreDriverPostgres StoreDriver = "postgres" // PostgreSQL over plain SQL
	StoreDriverMongo    StoreDriver = "mongo"    // MongoDB document store
	StoreDriverNeo4j    StoreDriver = "neo4j"    // Neo4j graph store
)

type (
	Config struct {
		HTTP
		Store
		Loans
		OverdueSweep
		Tasks
		Admin
		Global
	}

	HTTP struct {
		Port          int32
		Host          string
		CSRFSecret    string // Enables CSRF protection on mutating routes when set
		SecureCookies bool   // Set to false for local dev without HTTPS
	}
	Store struct {
		Driver        StoreDriver
		SQLitePath    string
		PostgresDSN   string
		MongoURI      string
		MongoDatabase string
		Neo4jURI      string
		Neo4jUser     string
		Neo4jPassword string
	}
	Loans struct {
		FineDailyRate float64 // Charged per day past the due date
	}
	OverdueSweep struct {
		Enabled  bool
		Schedule string // Cron format: "0 6 * * *" = daily at 06:00
	}
	Tasks struct {
		Enabled           bool
		DBPath            string // Separate SQLite file for the task queue
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Admin struct {
		Password   string // Required for catalog resets when set
		BcryptCost int
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8480)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("csrf_secret", "")
	v.SetDefault("secure_cookies", true)
	v.SetDefault("shutdown_timeout_in_seconds", 2)

	// Store defaults
	v.SetDefault("store_driver", "sqlite")
	v.SetDefault("sqlite_path", DefaultSQLitePath)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "library")
	v.SetDefault("neo4j_uri", "bolt://localhost:7687")
	v.SetDefault("neo4j_user", "neo4j")
	v.SetDefault("neo4j_password", "")

	// Loan defaults
	v.SetDefault("fine_daily_rate", 1.0)
	v.SetDefault("overdue_sweep_enabled", true)
	v.SetDefault("overdue_sweep_schedule", "0 6 * * *") // Daily at 06:00

	// Admin defaults
	v.SetDefault("admin_password", "")
	v.SetDefault("admin_bcrypt_cost", 12)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("tasks_db_path", DefaultTasksDatabasePath)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	return &Config{
		HTTP: HTTP{
			Port:          v.GetInt32("PORT"),
			Host:          v.GetString("HOST"),
			CSRFSecret:    v.GetString("CSRF_SECRET"),
			SecureCookies: v.GetBool("SECURE_COOKIES"),
		},
		Store: Store{
			Driver:        StoreDriver(v.GetString("STORE_DRIVER")),
			SQLitePath:    v.GetString("SQLITE_PATH"),
			PostgresDSN:   v.GetString("POSTGRES_DSN"),
			MongoURI:      v.GetString("MONGO_URI"),
			MongoDatabase: v.GetString("MONGO_DATABASE"),
			Neo4jURI:      v.GetString("NEO4J_URI"),
			Neo4jUser:     v.GetString("NEO4J_USER"),
			Neo4jPassword: v.GetString("NEO4J_PASSWORD"),
		},
		Loans: Loans{
			FineDailyRate: v.GetFloat64("FINE_DAILY_RATE"),
		},
		OverdueSweep: OverdueSweep{
			Enabled:  v.GetBool("OVERDUE_SWEEP_ENABLED"),
			Schedule: v.GetString("OVERDUE_SWEEP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			DBPath:            v.GetString("TASKS_DB_PATH"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Admin: Admin{
			Password:   v.GetString("ADMIN_PASSWORD"),
			BcryptCost: v.GetInt("ADMIN_BCRYPT_COST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}
