package testsupport

import (
	"testing"

	"shuttle/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// WithConcurrency overrides the transfer admission bound.
func WithConcurrency(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Transfers.Concurrency = n
	}
}

// WithAPIToken enables bearer-token auth on the API listener.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}

// WithHost appends an extra host definition.
func WithHost(host config.Host) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Hosts = append(cfg.Hosts, host)
	}
}

// NewConfig produces a config seeded with a unique temp log directory per
// test, an ephemeral API bind, and two hosts sharing a movies category.
// Sweeping is disabled so tests observe terminal records.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Transfers.SweepInterval = 0
	cfg.Hosts = []config.Host{
		{
			ID:         "alpha",
			Address:    "127.0.0.1",
			Port:       22,
			User:       "media",
			KeyFile:    "/tmp/key",
			Categories: map[string]string{"movies": "/srv/movies"},
			Fallback:   "movies",
		},
		{
			ID:         "beta",
			Address:    "127.0.0.1",
			Port:       22,
			User:       "vault",
			KeyFile:    "/tmp/key",
			Categories: map[string]string{"movies": "/library/Movies"},
			Fallback:   "movies",
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}
