package config

// Default paths for databases
const (
	// DefaultSQLitePath is the default path for the catalog database
	DefaultSQLitePath = "./library-catalog.db"

	// DefaultTasksDatabasePath is the default path for the task queue database
	DefaultTasksDatabasePath = "./library-tasks.db"
)
