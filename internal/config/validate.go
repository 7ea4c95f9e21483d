package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWarehouse(); err != nil {
		return err
	}
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateBulk(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWarehouse() error {
	switch c.Warehouse.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Warehouse.DSN == "" {
			return errors.New("warehouse.dsn is required for the postgres driver. Set REELSHELF_WAREHOUSE_DSN or edit the config file")
		}
	default:
		return fmt.Errorf("warehouse.driver: unsupported value %q (want %q or %q)", c.Warehouse.Driver, DriverSQLite, DriverPostgres)
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.RequestsPerSecond < 0 {
		return errors.New("tmdb.requests_per_second must be zero (unlimited) or positive")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.BackoffMS < 0 {
		return errors.New("retry.backoff_ms must not be negative")
	}
	return nil
}

func (c *Config) validateBulk() error {
	if c.Bulk.ChunkSize <= 0 {
		return errors.New("bulk.chunk_size must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
