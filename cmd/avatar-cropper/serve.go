package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/profilekit/avatar-cropper/internal/profile"
	"github.com/profilekit/avatar-cropper/internal/server"
)

type serveCmd struct {
	Addr    string `help:"Listen address (overrides the configured one)."`
	Verbose bool   `help:"Enable verbose logging."`
}

func (cmd *serveCmd) Run() error {
	setupLogger(cmd.Verbose)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Addr != "" {
		cfg.Server.Addr = cmd.Addr
	}

	opts, err := sessionOptions(cfg)
	if err != nil {
		return err
	}
	if opts.Placer != nil {
		log.Info().
			Str("backend", cfg.Placement.Backend).
			Str("model", cfg.Placement.Model).
			Msg("model placement enabled")
	}

	var profileClient *profile.Client
	if cfg.Profile.Endpoint != "" {
		profileClient = profile.NewClient(cfg.Profile.Endpoint, cfg.Profile.Token)
		log.Info().Str("endpoint", cfg.Profile.Endpoint).Msg("profile forwarding enabled")
	}

	srv := server.New(server.Config{
		Addr:          cfg.Server.Addr,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		SessionTTL:    cfg.Server.TTL(),
		Options:       opts,
		Profile:       profileClient,
	}, log.Logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.Run(ctx)
}
