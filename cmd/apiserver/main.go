// Command apiserver runs demo2apk's public HTTP ingestion API: it admits
// uploads into the queue and reports status/serves downloads, but never
// runs a build itself (that's cmd/worker's job), per spec.md §2.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/vibecoding/demo2apk/internal/config"
	"github.com/vibecoding/demo2apk/internal/httpapi"
	"github.com/vibecoding/demo2apk/internal/queue"
	"github.com/vibecoding/demo2apk/internal/storage"
	"github.com/vibecoding/demo2apk/internal/storage/archive"
	"github.com/vibecoding/demo2apk/logger"
)

func main() {
	app := &cli.App{
		Name:  "apiserver",
		Usage: "serve demo2apk's build-ingestion HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "override LOG_LEVEL for this process"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
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

	log := newLogger(cfg.LogLevel)
	log.Info("starting apiserver on %s:%s (redis=%s)", cfg.Host, cfg.Port, config.MaskedRedisURL(cfg.RedisURL))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, err := queue.NewRedisQueue(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to queue: %w", err)
	}
	defer q.Close()

	roots := storage.Roots{BuildsDir: cfg.BuildsDir, UploadsDir: cfg.UploadsDir}

	archiver, err := archive.New(ctx, log, cfg.ArchiveBackend, cfg.ArchiveBucket, cfg.ArchivePrefix)
	if err != nil {
		return fmt.Errorf("configuring archive backend: %w", err)
	}
	sweeper := &storage.Sweeper{
		Roots:     roots,
		Retention: time.Duration(cfg.FileRetentionHours) * time.Hour,
		Interval:  10 * time.Minute,
		Archiver:  archiver,
		Log:       log,
	}
	go sweeper.Run(ctx)

	server := httpapi.NewServer(cfg, q, roots, log)
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	return server.Stop()
}

func newLogger(level string) logger.Logger {
	l := logger.NewConsoleLogger(logger.NewTextPrinter(os.Stderr), os.Exit)
	if parsed, err := logger.LevelFromString(level); err == nil {
		l.SetLevel(parsed)
	}
	return l
}
