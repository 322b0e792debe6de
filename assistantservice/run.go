// Package assistantservice wires the assistant backend together and runs
// the HTTP server.
package assistantservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kotoba-ai/kotoba-assistant/internal/api"
	"github.com/kotoba-ai/kotoba-assistant/internal/config"
	"github.com/kotoba-ai/kotoba-assistant/internal/dispatcher"
	"github.com/kotoba-ai/kotoba-assistant/internal/gateway"
	"github.com/kotoba-ai/kotoba-assistant/internal/logger"
	"github.com/kotoba-ai/kotoba-assistant/internal/persona"
	"github.com/kotoba-ai/kotoba-assistant/internal/services"
	"github.com/kotoba-ai/kotoba-assistant/internal/session"
	"github.com/kotoba-ai/kotoba-assistant/internal/store"
	"github.com/kotoba-ai/kotoba-assistant/internal/store/postgres"
	"github.com/kotoba-ai/kotoba-assistant/internal/store/sqlite"
	"github.com/kotoba-ai/kotoba-assistant/internal/timing"
	"github.com/kotoba-ai/kotoba-assistant/internal/worker"
)

// Run starts the assistant service and blocks until shutdown or error.
func Run() error {
	log := logger.New("assistant-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("model", cfg.ModelName).
		Bool("queue_requests", cfg.QueueRequests).
		Msg("assistant service starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := newStore(ctx, cfg)
	if err != nil {
		log.Error().Stack().Err(err).Msg("store adapter unavailable")
		return err
	}
	defer func() { _ = st.Close() }()

	rec := timing.NewRecorder(timing.Config{
		File:          cfg.TimingFile,
		MaxDays:       cfg.TimingMaxDays,
		MaxCount:      cfg.TimingMaxCount,
		WarnThreshold: cfg.WarnThreshold,
		SlowThreshold: cfg.SlowThreshold,
	}, log)
	catalog := persona.NewCatalog(cfg.PersonaFile, log)

	gw := gateway.NewGenAIClient(cfg.ModelBaseURL, cfg.ModelName, cfg.ModelAPIKey, log)
	disp := dispatcher.New(gw, worker.Config{
		MaxRetries: cfg.MaxRetries,
		BaseWait:   cfg.RetryBaseWait,
		Queue:      cfg.QueueRequests,
	}, rec, log)
	defer disp.Shutdown()

	memSvc := services.NewMemoryService(st, cfg.MaxMemories, log)
	chatSvc := services.NewChatService(session.NewRegistry(), disp, catalog, memSvc, log)

	router := api.NewRouter(chatSvc, memSvc, catalog, rec, st, log)
	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("server forced to shutdown")
			return err
		}
		log.Info().Msg("server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// newStore selects the storage adapter from DB_DRIVER.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		return sqlite.NewStorage(cfg.SQLitePath)
	case "postgres":
		return postgres.NewStorage(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute, // generation calls can be slow
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}
