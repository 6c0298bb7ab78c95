package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"

	"natours_echo/internal/config"
	"natours_echo/internal/services"
	"natours_echo/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.SetLevel(cfg.Lvl())

	db, err := services.InitDB(cfg.DatabaseURL, false)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Initialize Task Registry
	tasks.DefineTasks(services.NewEmailService(cfg))
	runner := tasks.NewRunner(db, tasks.GlobalRegistry)

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("Shutting down worker...")
		cancel()
	}()

	if _, err := tasks.ReconcileRatingsTask.EnsureScheduled(ctx, db, time.Now()); err != nil {
		log.Errorf("Failed to schedule %s: %v", tasks.ReconcileRatingsTask.TaskID(), err)
	}

	log.Infof("Worker started, checking every %s", cfg.WorkerInterval)
	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	tick(ctx, runner)
	for {
		select {
		case <-ticker.C:
			tick(ctx, runner)
		case <-ctx.Done():
			return
		}
	}
}

func tick(ctx context.Context, runner *tasks.Runner) {
	n, err := runner.ProcessDue(ctx)
	if err != nil {
		log.Errorf("Error processing tasks: %v", err)
		return
	}
	if n > 0 {
		log.Infof("Processed %d tasks", n)
	} else {
		log.Debug("No pending tasks found.")
	}
}
