/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the time & attendance server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (env + .env, see config/config.go)
  2. Initialize SQLite store
  3. Start the invalid-attempt recorder
  4. Build PunchService, API handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -dev-token  Print a signed token for tenant/employee/role and exit
              (development only), e.g. -dev-token=acme/emp-1/manager

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Drain the recorder queue
  4. Close database connection

EXAMPLES:
  # Run with file database
  DB_PATH=./data/timeclock.db ./server

  # Run with in-memory database
  DB_PATH=":memory:" ./server

SEE ALSO:
  - api/server.go: Router configuration
  - attendance/service.go: Punch orchestration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/fieldops/timeclock/api"
	"github.com/fieldops/timeclock/attendance"
	"github.com/fieldops/timeclock/config"
	"github.com/fieldops/timeclock/geocode"
	"github.com/fieldops/timeclock/store/sqlite"
)

func main() {
	devToken := flag.String("dev-token", "", "print a token for tenant/employee/role and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.IsProduction)
	slog.SetDefault(logger)

	auth := api.Authenticator{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer}
	if *devToken != "" {
		if err := printDevToken(auth, *devToken); err != nil {
			logger.Error("failed to issue dev token", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	recorder := attendance.NewRecorder(store, logger, cfg.AuditBuffer, cfg.AuditTimeout)
	recorder.Start()
	defer recorder.Stop()

	service := &attendance.PunchService{
		Store:        store,
		Policies:     store,
		Recorder:     recorder,
		Logger:       logger,
		Defaults:     cfg.TenantDefaults(),
		StoreTimeout: cfg.StoreTimeout,
	}

	handler := api.NewHandler(service, store)
	handler.DB = store
	if cfg.GeocoderURL != "" {
		handler.Geocoder = geocode.NewClient(cfg.GeocoderURL, cfg.GeocoderTimeout)
		handler.GeocodeTimeout = cfg.GeocoderTimeout
	}

	rate, err := limiter.NewRateFromFormatted(cfg.PunchRateLimit)
	if err != nil {
		logger.Error("invalid PUNCH_RATE_LIMIT", slog.String("error", err.Error()))
		os.Exit(1)
	}

	router := api.NewRouter(handler, api.RouterOptions{
		Logger:         logger,
		Auth:           auth,
		PunchLimiter:   limiter.New(memory.NewStore(), rate),
		AllowedOrigins: cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", slog.String("addr", server.Addr), slog.String("db", cfg.DBPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func newLogger(production bool) *slog.Logger {
	if production {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func printDevToken(auth api.Authenticator, subject string) error {
	parts := strings.Split(subject, "/")
	if len(parts) != 3 {
		return fmt.Errorf("expected tenant/employee/role, got %q", subject)
	}
	token, err := auth.NewToken(parts[0], parts[1], api.Role(parts[2]), 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
