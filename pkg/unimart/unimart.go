// Package unimart assembles the data layer from configuration: the
// embedded store, the optional remote backend, and the dual facade the
// application code talks to.
package unimart

import (
	"context"
	"fmt"
	"os"

	"github.com/unimart/unimart/pkg/config"
	"github.com/unimart/unimart/pkg/logger"
	"github.com/unimart/unimart/pkg/store/dual"
	"github.com/unimart/unimart/pkg/store/local"
	"github.com/unimart/unimart/pkg/store/remote"
	"github.com/unimart/unimart/pkg/store/stream"
)

// Open builds the dual store described by cfg. In remote-enabled mode it
// connects to SurrealDB before returning; in local-only mode the remote
// endpoint is never contacted.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*dual.Store, error) {
	if log == nil {
		log = logger.Nop()
	}

	localStore := local.New(cfg.LocalPath, local.WithLogger(log))

	mode := dual.ModeLocal
	var remoteStore *remote.Store
	if cfg.UseRemote {
		var err error
		remoteStore, err = remote.New(ctx, remote.Config{
			Endpoint:  cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNS,
			Database:  cfg.SurrealDBDB,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
		}, remote.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("connect remote backend: %w", err)
		}
		mode = dual.ModeRemote
	}

	router := stream.NewRouter(
		stream.WithLogger(log),
		stream.WithPollInterval(cfg.PollInterval),
	)

	// A typed nil must not reach the facade masquerading as a backend.
	if remoteStore == nil {
		return dual.New(nil, localStore, mode, dual.WithLogger(log), dual.WithRouter(router))
	}
	return dual.New(remoteStore, localStore, mode, dual.WithLogger(log), dual.WithRouter(router))
}

// Main is the command line entry point.
func Main(ctx context.Context, args []string) error {
	cfg, err := config.Parse("unimart", args)
	if err != nil {
		return err
	}

	log := logger.New(os.Stderr)

	s, err := Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	log.Info("data layer ready",
		"mode", string(s.Mode()),
		"local_path", cfg.LocalPath,
		"remote", cfg.UseRemote)
	return nil
}
