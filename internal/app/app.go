package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/spellbound-server/internal/auth"
	"github.com/vovakirdan/spellbound-server/internal/config"
	"github.com/vovakirdan/spellbound-server/internal/lobby"
	"github.com/vovakirdan/spellbound-server/internal/session"
	"github.com/vovakirdan/spellbound-server/internal/store"
	"github.com/vovakirdan/spellbound-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/spellbound-server/internal/transport/http"
)

// App wires the lobby to its collaborators and the HTTP transport.
type App struct {
	server    *stdhttp.Server
	cfg       *config.Config
	store     store.Store
	publisher *session.KafkaPublisher
	log       *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.JWTSecret == config.DefaultJWTSecret {
		logger.Warn().Msg("jwt_secret is the development default; set SPELLBOUND_JWT_SECRET")
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	a := &App{cfg: cfg, store: st, log: logger}

	var publisher session.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		a.publisher = session.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = a.publisher
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("match_found publisher enabled")
	}
	sessions := session.NewService(st, publisher, logger)

	hub := lobby.NewHub(sessions, lobby.Options{
		SessionURLPrefix: cfg.SessionURLPrefix,
		Strict:           cfg.StrictInvariants,
	}, logger)

	a.server = transporthttp.NewServer(hub, authService, sessions, cfg, logger)
	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.cfg.Addr).Msg("lobby server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		err := a.server.Shutdown(shutdownCtx)
		a.cleanup()
		if err != nil {
			return err
		}
		return <-serverErr
	}
}

// cleanup flushes the publisher and closes the database.
func (a *App) cleanup() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close kafka publisher")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
