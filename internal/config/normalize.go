package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeWarehouse(); err != nil {
		return err
	}
	if err := c.normalizeSources(); err != nil {
		return err
	}
	c.normalizeTMDB()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWarehouse() error {
	c.Warehouse.Driver = strings.ToLower(strings.TrimSpace(c.Warehouse.Driver))
	switch c.Warehouse.Driver {
	case "", "sqlite3":
		c.Warehouse.Driver = DriverSQLite
	case "postgresql", "pgx":
		c.Warehouse.Driver = DriverPostgres
	}
	if c.Warehouse.DSN == "" {
		if value, ok := os.LookupEnv("REELSHELF_WAREHOUSE_DSN"); ok {
			c.Warehouse.DSN = value
		}
	}
	c.Warehouse.DSN = strings.TrimSpace(c.Warehouse.DSN)
	if c.Warehouse.Driver == DriverSQLite {
		if c.Warehouse.DSN == "" {
			c.Warehouse.DSN = defaultWarehouseDSN
		}
		if c.Warehouse.DSN != ":memory:" {
			var err error
			if c.Warehouse.DSN, err = expandPath(c.Warehouse.DSN); err != nil {
				return fmt.Errorf("warehouse.dsn: %w", err)
			}
		}
	}
	if c.Warehouse.BusyTimeoutMS <= 0 {
		c.Warehouse.BusyTimeoutMS = defaultBusyTimeoutMS
	}
	return nil
}

func (c *Config) normalizeSources() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"sources.books", &c.Sources.Books},
		{"sources.books_films_reviews", &c.Sources.BooksFilmsReviews},
		{"sources.box_office", &c.Sources.BoxOffice},
		{"sources.actors", &c.Sources.Actors},
		{"sources.imdb_ratings", &c.Sources.IMDbRatings},
		{"sources.imdb_principals", &c.Sources.IMDbPrincipals},
	}
	for _, field := range fields {
		trimmed := strings.TrimSpace(*field.value)
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	if c.TMDB.BearerToken == "" {
		if value, ok := os.LookupEnv("TMDB_BEARER_TOKEN"); ok {
			c.TMDB.BearerToken = value
		}
	}
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BearerToken = strings.TrimSpace(c.TMDB.BearerToken)
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
	if c.TMDB.PauseMS < 0 {
		c.TMDB.PauseMS = 0
	}
	if c.TMDB.TimeoutSeconds <= 0 {
		c.TMDB.TimeoutSeconds = defaultTMDBTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
