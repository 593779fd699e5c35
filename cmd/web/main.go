package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"restaurant-insights/internal/assistant"
	"restaurant-insights/internal/config"
	"restaurant-insights/internal/handlers"
	"restaurant-insights/internal/middleware"
	"restaurant-insights/internal/observability"
	"restaurant-insights/internal/server"
	"restaurant-insights/internal/services"
	"restaurant-insights/internal/session"
	"restaurant-insights/internal/store"
	"restaurant-insights/internal/ui/templates"
)

const (
	version          = "1.0.0"
	renderTimeout    = 10 * time.Second
	limiterSweep     = time.Minute
	dashboardNoCache = "no-store"
)

// dashboardHandler renders the full page from the current session. The page
// reflects mutable session state so it is never cached.
func dashboardHandler(analytics *services.Analytics, state *session.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		page := handlers.DashboardPage(ctx, analytics, state)
		w.Header().Set("Cache-Control", dashboardNoCache)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Dashboard(page).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

// parseFlags applies command-line overrides on top of the environment.
func parseFlags(cfg *config.Config, args []string) error {
	var addr string

	flagSet := pflag.NewFlagSet("restaurant-insights", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", cfg.Address(), "listen address (host:port)")
	flagSet.StringVar(&cfg.Data.FixtureFile, "fixture", cfg.Data.FixtureFile, "YAML record fixture (default: embedded dataset)")
	flagSet.StringVar(&cfg.Logger.Level, "log-level", cfg.Logger.Level, "debug, info, warn or error")
	flagSet.StringVar(&cfg.Logger.Format, "log-format", cfg.Logger.Format, "json or text")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	if flagSet.Changed("addr") {
		if err := cfg.SetAddress(addr); err != nil {
			return err
		}
	}
	return cfg.Validate()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"addr", cfg.Address(),
		"fixture", cfg.Data.FixtureFile,
		"assistant_model", cfg.Assistant.Model,
		"telemetry", cfg.Telemetry.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	start := time.Now()
	records, err := store.Load(cfg.Data.FixtureFile, logger)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	logger.Info("records loaded", "duration", time.Since(start))

	analytics := services.NewAnalytics(records, services.RealClock{}, logger)

	client := assistant.NewClient(assistant.Config{
		Endpoint:  cfg.Assistant.Endpoint,
		APIKey:    cfg.Assistant.APIKey,
		Model:     cfg.Assistant.Model,
		MaxTokens: cfg.Assistant.MaxTokens,
		Timeout:   cfg.Assistant.Timeout,
		RPS:       cfg.Assistant.RPS,
	})
	if !client.Enabled() {
		logger.Warn("no assistant API key configured, questions will receive the fallback reply")
	}
	state := session.New(store.AllLocations, assistant.NewConversation(client, logger))

	srv := server.NewServer(analytics, state, logger, &server.TemplateHandlers{
		Dashboard: dashboardHandler(analytics, state),
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	go rateLimiter.Run(ctx, limiterSweep)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Tracing(),
		middleware.Logger(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      middlewareChain(srv),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)
	gracefulServer.RegisterShutdownHook("rate-limiter", func(context.Context) error {
		cancel()
		return nil
	})
	gracefulServer.RegisterShutdownHook("tracing", shutdownTracing)

	if err := gracefulServer.ListenAndServe(ctx); err != nil {
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}
