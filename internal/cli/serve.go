package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/chatblocks/internal/auth"
	"github.com/raphaelgruber/chatblocks/internal/chat"
	"github.com/raphaelgruber/chatblocks/internal/config"
	"github.com/raphaelgruber/chatblocks/internal/db"
	"github.com/raphaelgruber/chatblocks/internal/llm"
	"github.com/raphaelgruber/chatblocks/internal/metrics"
	"github.com/raphaelgruber/chatblocks/internal/server"
	"github.com/raphaelgruber/chatblocks/internal/store"
	"github.com/raphaelgruber/chatblocks/internal/tools"
)

const (
	shutdownTimeout = 10 * time.Second
	toolHTTPTimeout = 15 * time.Second
)

var serveWipe bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat server",
	Long: `Run the HTTP server.

Storage, model providers, auth and rate limiting are configured through
environment variables (or a .env file). With CHATBLOCKS_STORE=memory the
server keeps everything in process.

Examples:
  chatblocks serve
  CHATBLOCKS_STORE=surrealdb chatblocks serve --wipe`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWipe, "wipe", false, "wipe all data from the database on startup (testing only)")
}

func runServe(cmd *cobra.Command, args []string) error {
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	logger, cleanup := config.SetupLogger(cfg.LogFile, level)
	defer func() {
		if err := cleanup(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mc := metrics.NewCollector()

	st, err := openStore(ctx, logger, mc)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	catalog := llm.DefaultCatalog()
	if cfg.ModelCatalog != "" {
		catalog, err = llm.LoadCatalog(cfg.ModelCatalog)
		if err != nil {
			return err
		}
	}

	toolSet, err := tools.ParseToolSet(cfg.ActiveTools)
	if err != nil {
		return fmt.Errorf("CHAT_TOOLS: %w", err)
	}

	registry := tools.NewRegistry(&tools.Dependencies{
		Store:          st,
		HTTPClient:     &http.Client{Timeout: toolHTTPTimeout},
		WeatherBaseURL: cfg.WeatherBaseURL,
		Logger:         logger,
		Metrics:        mc,
	})

	chatSvc := chat.NewService(chat.Dependencies{
		Store:   st,
		Catalog: catalog,
		Models: llm.NewProviders(llm.ProviderConfig{
			OpenAIAPIKey:    cfg.OpenAIAPIKey,
			OpenAIBaseURL:   cfg.OpenAIBaseURL,
			AnthropicAPIKey: cfg.AnthropicAPIKey,
			OllamaHost:      cfg.OllamaHost,
			AWSRegion:       cfg.AWSRegion,
		}),
		Registry: registry,
		Logger:   logger,
		Metrics:  mc,
	}, chat.Config{
		MaxSteps: cfg.MaxSteps,
		Tools:    toolSet,
	})

	var tokens *auth.Tokens
	if cfg.AuthSecret != "" {
		tokens = auth.NewTokens(cfg.AuthSecret, cfg.AuthTokenTTL)
	} else {
		logger.Warn("AUTH_SECRET not set, attributing all requests to the dev user", "user_id", cfg.DevUserID)
	}

	var limiter *server.RateLimiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter = server.NewRateLimiter(rdb, cfg.ChatRateLimit, cfg.ChatRateWindow, logger)
	}

	handler := server.New(server.Dependencies{
		Store:     st,
		Chat:      chatSvc,
		Catalog:   catalog,
		Tokens:    tokens,
		DevUserID: cfg.DevUserID,
		Limiter:   limiter,
		Metrics:   mc,
		Logger:    logger,
	}, server.Options{
		CORSOrigins:     cfg.CORSOrigins,
		ChatMaxDuration: cfg.ChatMaxDuration,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting chatblocks server", "addr", cfg.Addr, "store", cfg.Store, "models", len(catalog.Models()), "tools", toolSet)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// openStore connects the configured storage backend.
func openStore(ctx context.Context, logger *slog.Logger, mc *metrics.Collector) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreSurreal:
	default:
		return nil, fmt.Errorf("unknown store %q (want %q or %q)", cfg.Store, config.StoreMemory, config.StoreSurreal)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := db.NewClient(connectCtx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger, mc)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if serveWipe {
		if err := client.WipeData(connectCtx); err != nil {
			_ = client.Close(ctx)
			return nil, fmt.Errorf("wipe database: %w", err)
		}
		logger.Warn("database wiped")
	}
	if err := client.InitSchema(connectCtx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return client, nil
}
