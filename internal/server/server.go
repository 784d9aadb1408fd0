// Package server exposes interactive cropping sessions over HTTP. A client
// uploads an image to create a session, streams gesture frames against it,
// and confirms to receive the encoded avatar.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	avatarcropper "github.com/profilekit/avatar-cropper"
	"github.com/profilekit/avatar-cropper/internal/profile"
)

// Config holds the server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8087".
	Addr string
	// MaxUploadSize caps the accepted image payload in bytes.
	MaxUploadSize int64
	// SessionTTL is how long an idle session survives.
	SessionTTL time.Duration
	// SweepInterval is how often idle sessions are collected.
	SweepInterval time.Duration
	// Options is the template applied to every new session. The input
	// kind is overridden per upload.
	Options avatarcropper.Options
	// Profile forwards confirmed avatars to a profile service when set.
	Profile *profile.Client
}

// Server hosts cropping sessions behind a REST API.
type Server struct {
	config       Config
	log          zerolog.Logger
	registry     *Registry
	janitor      *Janitor
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// New creates a server from config, filling unset fields with defaults.
func New(config Config, log zerolog.Logger) *Server {
	if config.Addr == "" {
		config.Addr = ":8087"
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = 10 << 20
	}

	registry := NewRegistry(config.SessionTTL)
	return &Server{
		config:     config,
		log:        log,
		registry:   registry,
		janitor:    NewJanitor(registry, config.SweepInterval, log),
		shutdownCh: make(chan struct{}),
	}
}

// Shutdown asks a running server to stop. It is safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})
}

// Router builds the fiber application with every route registered. Run uses
// it; tests drive it directly through app.Test.
func (s *Server) Router() *fiber.App {
	app := fiber.New(fiber.Config{
		Immutable:             true,
		DisableStartupMessage: true,
		BodyLimit:             int(s.config.MaxUploadSize) + 1<<20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
			}
			s.log.Error().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("request failed")
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		},
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	api := app.Group("/api/v1")
	api.Post("/sessions", s.handleCreateSession)
	api.Get("/sessions/:id", s.handleGetSession)
	api.Post("/sessions/:id/input", s.handleInput)
	api.Post("/sessions/:id/suggest", s.handleSuggest)
	api.Get("/sessions/:id/preview", s.handlePreview)
	api.Post("/sessions/:id/confirm", s.handleConfirm)
	api.Delete("/sessions/:id", s.handleDeleteSession)

	return app
}

// Run serves until ctx is cancelled or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	app := s.Router()

	go s.janitor.Run(ctx)

	go func() {
		select {
		case <-ctx.Done():
		case <-s.shutdownCh:
		}
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.log.Error().Err(err).Msg("failed to shut down http server")
		}
	}()

	s.log.Info().Str("addr", s.config.Addr).Msg("avatar session server listening")
	if err := app.Listen(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
