// Package config holds the service configuration, parsed from environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full landchain service configuration. The zero-config
// posture runs an in-memory substrate on :8080 resolving keys embedded in
// each request, which is what local development and integration tests use.
type Config struct {
	HTTPAddr     string `env:"LC_HTTP_ADDR" envDefault:":8080"`
	MaxBodyBytes int64  `env:"LC_MAX_BODY_BYTES" envDefault:"1048576"`

	// Substrate selects the ledger backend: mem, badger, or postgres.
	Substrate        string        `env:"LC_SUBSTRATE" envDefault:"mem"`
	BadgerDir        string        `env:"LC_BADGER_DIR" envDefault:"./landchain-data"`
	BadgerLowMemory  bool          `env:"LC_BADGER_LOW_MEMORY" envDefault:"false"`
	BadgerGCInterval time.Duration `env:"LC_BADGER_GC_INTERVAL" envDefault:"5m"`
	PostgresDSN      string        `env:"LC_PG_DSN"`

	// KeySource selects how participant public keys are resolved: embedded
	// (PEM carried in the request), dir (keyring directory), or kms.
	KeySource   string `env:"LC_KEY_SOURCE" envDefault:"embedded"`
	KeyringDir  string `env:"LC_KEYRING_DIR"`
	KMSRegion   string `env:"LC_KMS_REGION"`
	KMSEndpoint string `env:"LC_KMS_ENDPOINT"`

	VerifyConcurrency int `env:"LC_VERIFY_CONCURRENCY" envDefault:"4"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return c, nil
}
