package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/koguma/bearcourt/internal/ai"
	"github.com/koguma/bearcourt/internal/cases"
	"github.com/koguma/bearcourt/internal/config"
	"github.com/koguma/bearcourt/internal/db"
	"github.com/koguma/bearcourt/internal/jobs"
	"github.com/koguma/bearcourt/internal/judge"
	"github.com/koguma/bearcourt/internal/lock"
	"github.com/koguma/bearcourt/internal/quota"
	"github.com/koguma/bearcourt/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the arbitration API server and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "bearcourt.yaml", "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Port = port
	}

	gormDB, err := connectAndMigrate(cfg)
	if err != nil {
		return err
	}

	app := buildApp(cfg, gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	app.jobs.Start()
	defer app.jobs.Stop()

	return web.Start(ctx, web.StartOpts{
		DB:    gormDB,
		Cases: app.cases,
		Judge: app.judge,
		Port:  cfg.Port,
		Out:   cmd.OutOrStdout(),
	})
}

// app bundles the wired services.
type app struct {
	cases *cases.Service
	judge *judge.Service
	jobs  *jobs.Scheduler
}

// buildApp wires the pipeline: OpenAI backend behind quota tracking and a
// classification cache, DB-backed locks and counters so multiple instances
// share one quota and one lock space.
func buildApp(cfg *config.Config, gormDB *gorm.DB) *app {
	counters := quota.NewDBStore(gormDB)
	tracker := quota.NewTracker(counters, cfg.AI.DailyLimit)
	cache := ai.NewMemoryCache(0)
	client := ai.NewClient(cfg.AI, ai.NewOpenAIBackend(cfg.AI), tracker, cache)
	locks := lock.NewDBStore(gormDB)

	scheduler, err := jobs.New(jobs.Opts{
		DB:       gormDB,
		Locks:    locks,
		Cache:    cache,
		Counters: counters,
	})
	if err != nil {
		// Only reachable with a malformed schedule constant.
		panic(err)
	}

	return &app{
		cases: cases.NewService(gormDB, client),
		judge: judge.NewService(gormDB, client, locks, cfg.Lock.TTL()),
		jobs:  scheduler,
	}
}

func loadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}

func connectAndMigrate(cfg *config.Config) (*gorm.DB, error) {
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return gormDB, nil
}
