// Command worker leases build jobs from the queue and runs them through
// the html or zip pipeline, per spec.md §4.4; it never serves HTTP (that's
// cmd/apiserver's job).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/vibecoding/demo2apk/internal/cmdexec"
	"github.com/vibecoding/demo2apk/internal/config"
	htmlpipeline "github.com/vibecoding/demo2apk/internal/pipeline/html"
	zippipeline "github.com/vibecoding/demo2apk/internal/pipeline/zip"
	"github.com/vibecoding/demo2apk/internal/queue"
	"github.com/vibecoding/demo2apk/internal/storage"
	"github.com/vibecoding/demo2apk/internal/worker"
	"github.com/vibecoding/demo2apk/logger"
)

func main() {
	app := &cli.App{
		Name:  "worker",
		Usage: "run demo2apk's build pipelines against leased queue jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "override LOG_LEVEL for this process"},
			&cli.IntFlag{Name: "concurrency", Usage: "override WORKER_CONCURRENCY for this process"},
			&cli.DurationFlag{Name: "shutdown-timeout", Usage: "override SHUTDOWN_TIMEOUT for this process (0 disables escalation to ungraceful shutdown)"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if override := c.String("log-level"); override != "" {
		cfg.LogLevel = override
	}
	if override := c.Int("concurrency"); override > 0 {
		cfg.WorkerConcurrency = override
	}
	if c.IsSet("shutdown-timeout") {
		cfg.ShutdownTimeout = c.Duration("shutdown-timeout")
	}

	log := newLogger(cfg.LogLevel)
	log.Info("starting worker (concurrency=%d, mock=%v)", cfg.WorkerConcurrency, cfg.MockBuild)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, err := queue.NewRedisQueue(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to queue: %w", err)
	}
	defer q.Close()

	roots := storage.Roots{BuildsDir: cfg.BuildsDir, UploadsDir: cfg.UploadsDir}
	runner := cmdexec.ProcessRunner{}

	pool := worker.NewPool(q, roots, log, cfg.WorkerConcurrency,
		&htmlpipeline.Pipeline{Runner: runner, Log: log, Roots: roots},
		&zippipeline.Pipeline{Runner: runner, Log: log, Roots: roots},
		cfg.MockBuild,
	)

	runDone := make(chan error, 1)
	go func() { runDone <- pool.Run(ctx) }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, waiting for in-flight builds")
		pool.StopGracefully()
		if cfg.ShutdownTimeout <= 0 {
			// No timeout enforcement in the default policy: wait however
			// long the in-flight builds take.
			<-runDone
		} else {
			select {
			case <-runDone:
			case <-time.After(cfg.ShutdownTimeout):
				log.Warn("graceful shutdown timed out, cancelling in-flight builds")
				pool.StopUngracefully()
				<-runDone
			}
		}
	case err := <-runDone:
		if err != nil {
			return fmt.Errorf("worker pool exited: %w", err)
		}
	}

	log.Info("worker stopped")
	return nil
}

func newLogger(level string) logger.Logger {
	l := logger.NewConsoleLogger(logger.NewTextPrinter(os.Stderr), os.Exit)
	if parsed, err := logger.LevelFromString(level); err == nil {
		l.SetLevel(parsed)
	}
	return l
}
