package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-realtime/internal/auth"
	"github.com/vovakirdan/wirechat-realtime/internal/callengine"
	"github.com/vovakirdan/wirechat-realtime/internal/callengine/livekit"
	"github.com/vovakirdan/wirechat-realtime/internal/config"
	"github.com/vovakirdan/wirechat-realtime/internal/core"
	"github.com/vovakirdan/wirechat-realtime/internal/service/conversations"
	"github.com/vovakirdan/wirechat-realtime/internal/store"
	"github.com/vovakirdan/wirechat-realtime/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-realtime/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	auth            *auth.Service
	conversations   *conversations.Service
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	authService := auth.NewService(st, JWTConfig(cfg))

	var media callengine.Engine
	if cfg.LiveKit.Enabled {
		media = livekit.New(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.URL, cfg.LiveKit.TokenTTL)
		logger.Info().Str("url", cfg.LiveKit.URL).Msg("livekit media relay enabled")
	}

	hub := core.NewHub(core.Options{Store: st, Media: media, Logger: logger})
	server := transporthttp.NewServer(hub, authService, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		auth:            authService,
		conversations:   conversations.New(st),
		log:             logger,
	}, nil
}

// JWTConfig derives the token settings from cfg.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
}

// Store returns the durable store.
func (a *App) Store() store.Store {
	return a.store
}

// Auth returns the authentication service.
func (a *App) Auth() *auth.Service {
	return a.auth
}

// Conversations returns the connection request service.
func (a *App) Conversations() *conversations.Service {
	return a.conversations
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.hub.Run(ctx)
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the store.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
