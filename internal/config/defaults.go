package config

// Supported warehouse drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultStateDir          = "~/.local/share/reelshelf"
	defaultWarehouseDSN      = "~/.local/share/reelshelf/warehouse.db"
	defaultBusyTimeoutMS     = 5000
	defaultTMDBLanguage      = "en-US"
	defaultTMDBBaseURL       = "https://api.themoviedb.org/3"
	defaultTMDBPauseMS       = 100
	defaultTMDBTimeout       = 15
	defaultRetryMaxAttempts  = 3
	defaultRetryBackoffMS    = 1000
	defaultBulkChunkSize     = 100000
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultRequestsPerSecond = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Warehouse: Warehouse{
			Driver:        DriverSQLite,
			DSN:           defaultWarehouseDSN,
			BusyTimeoutMS: defaultBusyTimeoutMS,
		},
		TMDB: TMDB{
			BaseURL:           defaultTMDBBaseURL,
			Language:          defaultTMDBLanguage,
			PauseMS:           defaultTMDBPauseMS,
			TimeoutSeconds:    defaultTMDBTimeout,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		Retry: Retry{
			MaxAttempts: defaultRetryMaxAttempts,
			BackoffMS:   defaultRetryBackoffMS,
		},
		Bulk: Bulk{
			ChunkSize: defaultBulkChunkSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
