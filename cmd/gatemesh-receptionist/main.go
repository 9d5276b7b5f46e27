package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/gatemesh-go/internal/infra/buildinfo"
	"github.com/yndnr/gatemesh-go/internal/infra/confloader"
	"github.com/yndnr/gatemesh-go/internal/infra/shutdown"
	"github.com/yndnr/gatemesh-go/internal/server/clusterserver"
	"github.com/yndnr/gatemesh-go/internal/server/config"
	"github.com/yndnr/gatemesh-go/internal/telemetry/logger"
	"github.com/yndnr/gatemesh-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("gatemesh-receptionist %s\n", buildinfo.String())
		return nil
	}

	loader := confloader.NewLoader(confloader.WithConfigFile(*configFile))
	cfg, err := loadConfig(loader)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg.Log.LoggerConfig())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting gatemesh-receptionist",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"settings", cfg)

	var registry *metric.Registry
	if cfg.Receptionist.Metrics {
		registry = metric.NewRegistry()
		registry.SetBuildInfo(info.Version, info.Commit)
	}

	clusterCfg, err := config.ToClusterConfig(cfg, registry, log)
	if err != nil {
		return err
	}
	srv, err := clusterserver.New(clusterCfg)
	if err != nil {
		return fmt.Errorf("create receptionist: %w", err)
	}

	shutdownHandler := shutdown.NewHandler(shutdownTimeout, log)
	// Hooks run in reverse order: the watcher stops before the node.
	shutdownHandler.OnShutdown("receptionist", srv.Shutdown)

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		_ = srv.Shutdown(ctx)
		return fmt.Errorf("start receptionist: %w", err)
	}

	reload := func() {
		next, err := loadConfig(loader)
		if err != nil {
			log.Error("config reload rejected", "error", err)
			return
		}
		if next.Log.Level != logger.GetLevel() {
			logger.SetLevel(next.Log.Level)
			log.Info("log level changed", "level", next.Log.Level)
		}
	}
	shutdownHandler.OnReload(reload)

	if loader.FilePath() != "" {
		watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		if err := watcher.Watch(loader.FilePath()); err != nil {
			_ = watcher.Stop()
			return fmt.Errorf("watch config: %w", err)
		}
		watcher.OnChange(func(string) { reload() })
		watcher.StartAsync()
		shutdownHandler.OnShutdown("config-watcher", func(context.Context) error {
			return watcher.Stop()
		})
	}

	go watchServe(srv, shutdownHandler, log)

	log.Info("receptionist ready, press Ctrl+C to stop", "addr", srv.Addr())
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("receptionist stopped gracefully")
	return nil
}

// loadConfig reads file and environment over the defaults and verifies
// the result.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// watchServe triggers shutdown when the RPC server stops on its own.
func watchServe(srv *clusterserver.Server, h *shutdown.Handler, log *slog.Logger) {
	select {
	case err := <-srv.Err():
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("rpc server failed", "error", err)
			h.Trigger()
		}
	case <-h.Done():
	}
}
