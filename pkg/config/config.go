// Package config holds the runtime configuration for the data layer and
// parses it from flags and environment variables.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// Config carries everything needed to construct the stores. Environment
// variables provide defaults and flags override them.
type Config struct {
	// UseRemote selects the remote backend at startup. It is read once;
	// runtime demotion never rewrites it.
	UseRemote bool

	// SurrealDB connection parameters.
	SurrealDBURL  string
	SurrealDBNS   string
	SurrealDBDB   string
	SurrealDBUser string
	SurrealDBPass string

	// LocalPath is the SQLite database file for the embedded store.
	// ":memory:" keeps it in process memory.
	LocalPath string

	// PollInterval is the subscription polling cadence for backends
	// without native change streams.
	PollInterval time.Duration
}

// Parse builds a Config from args. Flags take precedence over
// environment variables, which take precedence over built-in defaults.
func Parse(name string, args []string) (*Config, error) {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)

	var (
		useRemote   = flagSet.Bool("use-remote", getEnv("UNIMART_USE_REMOTE", "") == "true", "Serve reads and writes from the remote database")
		surrealURL  = flagSet.String("surrealdb-url", getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"), "SurrealDB WebSocket endpoint")
		surrealNS   = flagSet.String("surrealdb-ns", getEnv("SURREALDB_NS", "unimart"), "SurrealDB namespace")
		surrealDB   = flagSet.String("surrealdb-db", getEnv("SURREALDB_DB", "unimart"), "SurrealDB database")
		surrealUser = flagSet.String("surrealdb-user", getEnv("SURREALDB_USER", "root"), "SurrealDB user")
		surrealPass = flagSet.String("surrealdb-pass", getEnv("SURREALDB_PASS", "root"), "SurrealDB password")
		localPath   = flagSet.String("local-path", getEnv("UNIMART_LOCAL_PATH", "unimart.db"), "Embedded store database file")
		pollEvery   = flagSet.Duration("poll-interval", 0, "Subscription polling interval for the embedded store")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		UseRemote:     *useRemote,
		SurrealDBURL:  *surrealURL,
		SurrealDBNS:   *surrealNS,
		SurrealDBDB:   *surrealDB,
		SurrealDBUser: *surrealUser,
		SurrealDBPass: *surrealPass,
		LocalPath:     *localPath,
		PollInterval:  *pollEvery,
	}
	if cfg.PollInterval == 0 {
		d, err := time.ParseDuration(getEnv("UNIMART_POLL_INTERVAL", "1500ms"))
		if err != nil {
			return nil, fmt.Errorf("UNIMART_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("local store path must not be empty")
	}
	return cfg, nil
}

// getEnv retrieves an environment variable with a fallback default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
