package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaif/hal/internal/api"
	"github.com/jaif/hal/internal/chains"
	"github.com/jaif/hal/internal/config"
	"github.com/jaif/hal/internal/database"
	"github.com/jaif/hal/internal/genai"
	"github.com/jaif/hal/internal/jokes"
	"github.com/jaif/hal/internal/knowledge"
	"github.com/jaif/hal/internal/session"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // SSE streaming needs longer timeout
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes the full dependency graph and starts the HTTP
// API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	logger.Info("starting HTTP API server", "version", AppVersion)

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	client, err := genai.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing model client: %w", err)
	}

	knowledgeStore := knowledge.New(knowledge.NewQueries(pool), client.Embedder(cfg.EmbedderModel), logger)
	sessionStore := session.New(pool, logger)
	jokeStore := jokes.New(pool, logger)

	registry := chains.New(client, chains.StoreRetriever{Store: knowledgeStore}, logger)
	jokeGen := chains.NewJokeGenerator(client)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:        logger,
		Registry:      registry,
		Generator:     client,
		Auth:          api.StaticTokenAuthenticator{Token: cfg.AuthToken},
		Sessions:      sessionStore,
		Jokes:         jokeStore,
		JokeGenerator: jokeGen,
		Knowledge:     knowledgeStore,
		Pool:          pool,
		CORSOrigins:   cfg.CORSOrigins,
		TrustProxy:    cfg.TrustProxy,
		RateBurst:     cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.Addr,
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
