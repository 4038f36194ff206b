package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/auth"
	httpserver "github.com/custodia-labs/sercha-sitesync/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/services"
	"github.com/custodia-labs/sercha-sitesync/internal/runtime"
	"github.com/custodia-labs/sercha-sitesync/internal/worker"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the sync worker and the scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	cfg := a.cfg
	if cfg.Auth.JWTSecret == "" || cfg.Auth.KeyHash == "" {
		return fmt.Errorf("%w: auth.jwt_secret and auth.key_hash are required to serve the API", domain.ErrInvalidInput)
	}

	svc, err := runtime.Open(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	driver, err := a.driver(svc, true)
	if err != nil {
		return err
	}

	hostname, _ := os.Hostname()
	queue, err := svc.TaskQueue(ctx, cfg.Worker.QueueSize, fmt.Sprintf("%s-%d", hostname, os.Getpid()))
	if err != nil {
		return err
	}
	taskService := services.NewTaskService(queue, a.logger)

	var scheduler *services.Scheduler
	if len(cfg.Schedules) > 0 {
		scheduler = services.NewScheduler(services.SchedulerConfig{
			Tasks:     taskService,
			Schedules: cfg.Schedules,
			Lock:      svc.Lock,
			Logger:    a.logger,
		})
	}

	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:   queue,
		SyncService: driver,
		Scheduler:   scheduler,
		Logger:      a.logger,
		Concurrency: cfg.Worker.Concurrency,
	})
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	checks := map[string]httpserver.Pinger{"queue": queue}
	for name, check := range svc.Checks() {
		checks[name] = check
	}

	authService := services.NewAuthService(auth.NewAdapter(cfg.Auth.JWTSecret), cfg.Auth.KeyHash, cfg.Auth.TokenTTL)
	server := httpserver.NewServer(
		httpserver.Config{Host: cfg.HTTP.Host, Port: cfg.HTTP.Port, Version: version},
		authService,
		driver,
		taskService,
		checks,
		a.logger,
	)

	a.logger.Info("sercha-sitesync serving",
		"version", version,
		"backend", svc.Backend,
		"schedules", len(cfg.Schedules),
	)
	return server.Start(ctx)
}
