package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/barberia-elite/cmd/mainconfig"
	"github.com/wolfman30/barberia-elite/internal/api/router"
	"github.com/wolfman30/barberia-elite/internal/app/bootstrap"
	appconfig "github.com/wolfman30/barberia-elite/internal/config"
	"github.com/wolfman30/barberia-elite/internal/forms"
	"github.com/wolfman30/barberia-elite/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/barberia-elite/internal/http/middleware"
	"github.com/wolfman30/barberia-elite/internal/leads"
	"github.com/wolfman30/barberia-elite/internal/notify"
	"github.com/wolfman30/barberia-elite/internal/observability/metrics"
	"github.com/wolfman30/barberia-elite/internal/webui"
	"github.com/wolfman30/barberia-elite/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting barberia-elite API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
	)

	app, err := buildApp(context.Background(), cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Success("server stopped")
}

// application is the wired HTTP surface plus the resources it owns.
type application struct {
	handler http.Handler
	webui   *webui.Handler
	redis   *redis.Client
	limiter *httpmiddleware.RateLimiter
}

// Close releases background resources. It is safe to call once.
func (a *application) Close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (*application, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	defs, err := bootstrap.LoadDefinitions(cfg)
	if err != nil {
		return nil, err
	}
	clk := clock.New()

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	formMetrics := metrics.NewFormMetrics(reg)

	app := &application{}
	if cfg.StoreBackend == appconfig.StoreRedis {
		app.redis = bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	}
	stores := bootstrap.BuildStoreFactory(cfg, app.redis, logger)

	forwarder, err := bootstrap.BuildForwarder(cfg, formMetrics, logger)
	if err != nil {
		return nil, err
	}

	var sesClient *sesv2.Client
	if cfg.EmailProvider == appconfig.EmailSES {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
		} else {
			sesClient = mainconfig.NewSESClient(awsCfg, cfg)
		}
	}
	sender, provider := bootstrap.BuildEmailSender(cfg, sesClient, logger)
	notifier := notify.NewService(sender, notify.ServiceConfig{
		ShopEmail:   cfg.ShopEmail,
		ShopName:    cfg.EmailFromName,
		Definitions: defs,
		Location:    loc,
	}, logger)
	logger.Info("email notifications configured", "provider", provider, "shop_email_set", cfg.ShopEmail != "")

	// Initialize repositories and services
	leadsRepo := leads.NewInMemoryRepository()
	intake := leads.NewIntake(leadsRepo, defs, clk, loc)
	leadsHandler := leads.NewHandler(intake, leadsRepo, notifier, logger)

	options := []forms.Option{
		forms.WithClock(clk),
		forms.WithLocation(loc),
		forms.WithNotificationDelay(cfg.NotificationDelay),
		forms.WithMetrics(formMetrics),
	}
	if forwarder != nil {
		options = append(options, forms.WithForwarder(forwarder))
	}
	app.webui = webui.NewHandler(defs, stores, webui.NewSessionTokens([]byte(cfg.SessionSecret)), logger, options...)

	var pinger handlers.Pinger
	if app.redis != nil {
		client := app.redis
		pinger = handlers.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}

	if cfg.RateLimitRPS > 0 {
		app.limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, clk)
	}

	// Setup router
	app.handler = router.New(&router.Config{
		Logger:             logger,
		HealthHandler:      handlers.NewHealthHandler(pinger, logger),
		FormsHandler:       handlers.NewFormsHandler(defs, clk, loc, logger),
		LeadsHandler:       leadsHandler,
		WebUIHandler:       app.webui,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		SubmissionLimiter:  app.limiter,
		AdminAuthSecret:    cfg.AdminAuthSecret,
	})
	return app, nil
}
