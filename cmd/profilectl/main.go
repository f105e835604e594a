package main

import (
	"context"
	"os"

	"github.com/jacksonlee411/community-portal/internal/config"
	"github.com/jacksonlee411/community-portal/internal/server"
	"github.com/jacksonlee411/community-portal/modules/profile/services"
	"github.com/jacksonlee411/community-portal/pkg/logging"
)

func main() {
	root := newRootCmd(openService)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// openService wires the service from the same configuration as the server.
func openService(ctx context.Context) (*services.ProfileService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, "profilectl")
	if err != nil {
		return nil, nil, err
	}
	deps, err := server.OpenDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	svc, err := deps.Service(logger)
	if err != nil {
		deps.Close()
		return nil, nil, err
	}
	return svc, func() {
		deps.Close()
		_ = logger.Sync()
	}, nil
}
