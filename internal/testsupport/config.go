package testsupport

import (
	"path/filepath"
	"testing"

	"reelshelf/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test:
// an embedded warehouse under the temp dir, no sources, no credentials, and
// retry/pause delays shrunk to keep tests fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Warehouse.DSN = filepath.Join(base, "state", "warehouse.db")
	cfgVal.TMDB.APIKey = ""
	cfgVal.TMDB.BearerToken = ""
	cfgVal.TMDB.PauseMS = 0
	cfgVal.Retry.BackoffMS = 1
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTMDB points the remote client at a test server.
func WithTMDB(baseURL, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.BaseURL = baseURL
		b.cfg.TMDB.APIKey = apiKey
	}
}

// WithSources overrides the source file locations.
func WithSources(sources config.Sources) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sources = sources
	}
}

// WithChunkSize overrides the bulk loader chunk size.
func WithChunkSize(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bulk.ChunkSize = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
