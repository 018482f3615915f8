/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the PAYE/NIS assessment server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load config
  2. Load the rate schedule (file or built-in)
  3. Open the history store for the configured backend
  4. Start the idle session sweeper
  5. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to YAML config (default: $CONFIG_PATH or configs/config.yaml)
  -port    HTTP server port, overrides config when non-zero
  -dump-schedule
           Print the rate schedule in force as YAML and exit

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper and close the history store
  4. Exit

EXAMPLES:
  # Run with defaults (in-memory history)
  ./server

  # Keep history in Redis
  HISTORY_BACKEND=redis REDIS_ADDR=localhost:6379 ./server

  # Use a different rate table
  SCHEDULE_FILE=configs/schedule.yaml ./server -port=3000

SEE ALSO:
  - config/config.go: Settings and environment overrides
  - api/server.go: Router configuration
  - history/: Session history backends
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sajclarke/tax-calculator-app/api"
	"github.com/sajclarke/tax-calculator-app/config"
	"github.com/sajclarke/tax-calculator-app/factory"
	"github.com/sajclarke/tax-calculator-app/history"
	"github.com/sajclarke/tax-calculator-app/paye"
	"github.com/sajclarke/tax-calculator-app/store/redis"
	"github.com/sajclarke/tax-calculator-app/store/sqlite"
)

var log = logrus.WithField("module", "main")

func main() {
	// Flags
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	configPath := flag.String("config", defaultConfig, "Path to YAML config")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dumpSchedule := flag.Bool("dump-schedule", false, "Print the rate schedule in force as YAML and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	setupLogging(cfg.Log.Level)

	// Rate schedule
	schedule, err := loadSchedule(cfg.ScheduleFile)
	if err != nil {
		log.Fatalf("Failed to load schedule: %v", err)
	}
	engine, err := paye.NewEngine(schedule)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	if *dumpSchedule {
		if err := factory.WriteYAML(os.Stdout, engine.Schedule()); err != nil {
			log.Fatalf("Failed to dump schedule: %v", err)
		}
		return
	}

	// History store
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer store.Close()

	sweeper := history.NewSweeper(store, cfg.History.SweepCron, cfg.History.SessionTTL)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start sweeper: %v", err)
	}
	defer sweeper.Stop()

	router := api.NewRouter(api.NewHandler(engine, store), cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":    cfg.Server.Port,
			"backend": cfg.History.Backend,
			"year":    schedule.Year,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("server stopped")
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

func loadSchedule(path string) (paye.Schedule, error) {
	if path == "" {
		return paye.DefaultSchedule(), nil
	}
	s, err := factory.LoadFile(path)
	if err != nil {
		return paye.Schedule{}, err
	}
	log.WithField("file", path).Info("loaded rate schedule")
	return *s, nil
}

func openStore(cfg *config.Config) (history.Store, error) {
	h := cfg.History
	switch h.Backend {
	case config.BackendSQLite:
		return sqlite.New(h.SQLitePath, h.MaxEntries)
	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return redis.New(ctx, redis.Options{
			Addr:       h.RedisAddr,
			MaxEntries: h.MaxEntries,
			TTL:        h.SessionTTL,
		})
	default:
		return history.NewMemory(h.MaxEntries), nil
	}
}
