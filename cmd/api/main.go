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

	"resource-api/internal/platform/config"
	"resource-api/internal/platform/logger"
	"resource-api/internal/router"

	"github.com/spf13/pflag"
)

// @title resource-api
// @version 1.0
// @description Recursos REST declarativos: schema, permisos por handler y dependencias desnormalizadas entre recursos.
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("api", pflag.ContinueOnError)
	configPath := flags.String("config", "", "archivo YAML de configuración (default $CONFIG_FILE)")
	port := flags.Int("port", 0, "puerto HTTP (pisa PORT)")
	storeDriver := flags.String("store", "", "document store: memory|postgres|mongo|elasticsearch")
	cacheDriver := flags.String("cache", "", "cache: memory|redis")
	logLevel := flags.String("log-level", "", "debug|info|warn|error")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *storeDriver != "" {
		cfg.Store.Driver = config.StoreDriver(*storeDriver)
	}
	if *cacheDriver != "" {
		cfg.Cache.Driver = config.CacheDriver(*cacheDriver)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    "resource-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := router.NewRouter(ctx, router.Options{Config: cfg, Log: log})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      rt,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{
			"addr":  srv.Addr,
			"store": cfg.Store.Driver,
			"cache": cfg.Cache.Driver,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", map[string]any{"err": err})
	}
	return rt.Close(shutdownCtx)
}
