package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cgarena/cgarena/internal/arena"
	"github.com/cgarena/cgarena/internal/config"
	"github.com/cgarena/cgarena/internal/database"
	server "github.com/cgarena/cgarena/internal/http"
	"github.com/cgarena/cgarena/internal/matchmaking"
	"github.com/cgarena/cgarena/internal/metrics"
	"github.com/cgarena/cgarena/internal/notifier"
	"github.com/cgarena/cgarena/internal/notifier/slack"
	"github.com/cgarena/cgarena/internal/orchestrator"
	"github.com/cgarena/cgarena/internal/rating"
	"github.com/spf13/cobra"
)

const dbFileName = "cgarena.db"

// drainWindow is how long in-flight jobs get to finish on shutdown before
// they are cancelled and failed.
const drainWindow = 30 * time.Second

func init() {
	runCmd.AddCommand(runServerCmd)
	runCmd.AddCommand(runWorkerCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(runCmd)
}

var newCmd = &cobra.Command{
	Use:   "new <path>",
	Short: "Scaffold a new arena directory with a default config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arenaPath := args[0]
		if err := os.MkdirAll(arenaPath, 0o755); err != nil {
			return fmt.Errorf("failed to create arena directory: %w", err)
		}
		if err := config.WriteDefault(arenaPath); err != nil {
			return err
		}
		fmt.Printf("Arena created at %s. Edit %s and start it with 'cgarena run server %s'.\n",
			arenaPath, filepath.Join(arenaPath, config.FileName), arenaPath)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an arena process",
}

var runServerCmd = &cobra.Command{
	Use:   "server <path>",
	Short: "Run the arena server (API, matchmaker and embedded worker)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(args[0])
	},
}

var runWorkerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a standalone remote worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return errors.New("remote workers are not implemented; enable the embedded worker via the 'worker' section of the arena config instead")
	},
}

func runServer(arenaPath string) error {
	startTime := time.Now()
	log.SetFormatter(log.JSONFormatter)

	cfg, err := config.Load(arenaPath)
	if err != nil {
		return fmt.Errorf("failed to load arena config: %w", err)
	}

	db, dbTeardown, err := database.InitDB(
		filepath.Join(arenaPath, dbFileName),
		os.Getenv("TURSO_PRIMARY_URL"),
		os.Getenv("TURSO_AUTH_TOKEN"),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		log.Info("Closing database connection")
		dbTeardown()
	}()

	store := arena.New(db)
	engine, err := rating.New(cfg.Ranking)
	if err != nil {
		return err
	}
	metricsSvc := metrics.NewService()
	metricsHandler := metrics.NewMetricsHandler()

	var notif notifier.Notifier = notifier.NewNoop()
	if token, channel := os.Getenv("SLACK_BOT_TOKEN"), os.Getenv("SLACK_CHANNEL_ID"); token != "" && channel != "" {
		notif = slack.NewNotifier(token, channel, metricsSvc)
		log.Info("Slack notifications enabled", "channel", channel)
	}

	mm := matchmaking.New(cfg.Game, cfg.Matchmaking)
	orch := orchestrator.New(store, engine, mm, metricsSvc, notif, cfg)
	if err := orch.Start(); err != nil {
		return err
	}

	s := server.NewServer(store, orch, metricsSvc, metricsHandler, cfg)

	startupDuration := time.Since(startTime)
	metricsSvc.SetStartupTime(startupDuration.Seconds())
	log.Info("Startup time recorded", "duration_ms", startupDuration.Milliseconds())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: s,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info("Server started", "port", cfg.Server.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		} else {
			log.Info("Server gracefully stopped")
		}

		orch.Shutdown(drainWindow)
	}

	log.Info("Server process shutting down")
	return nil
}
