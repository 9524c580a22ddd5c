// Package main is the capability container entry point. It loads the
// capability manifest and container configuration, starts the bootstrap
// engine, and runs until interrupted.
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

	"github.com/ion-foundation/capability-container/internal/api/httpserver"
	"github.com/ion-foundation/capability-container/internal/config"
	"github.com/ion-foundation/capability-container/internal/container"
	"github.com/ion-foundation/capability-container/internal/logging"
)

func main() {
	var (
		configPath   = flag.String("config", "", "container configuration file (YAML)")
		manifestPath = flag.String("manifest", "config/manifest.yaml", "capability manifest file (YAML)")
	)
	flag.Parse()

	if err := run(*configPath, *manifestPath); err != nil {
		fmt.Fprintf(os.Stderr, "container: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, manifestPath string) error {
	provider, err := config.Load(configPath)
	if err != nil {
		return err
	}
	settings, err := provider.Settings()
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:      settings.Logging.Level,
		Format:     settings.Logging.Format,
		Output:     settings.Logging.Output,
		FilePrefix: settings.Logging.FilePrefix,
	}).WithComponent("container")

	registry, err := config.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	c := container.New(settings, registry, provider, log)
	if err := c.RegisterBuiltins(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		return err
	}

	var admin *httpserver.Server
	if settings.Admin.Enabled {
		admin = httpserver.New(settings.Admin.Listen, log,
			httpserver.NewRouter(c, log, settings.Admin.RateLimit))
		go func() {
			if err := admin.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("admin API failed")
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("admin API shutdown")
		}
	}

	if errs := c.Stop(shutdownCtx); len(errs) > 0 {
		log.Warnf("shutdown completed with %d teardown error(s)", len(errs))
	}
	return nil
}
