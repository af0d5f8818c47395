package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/mdus/internal/logger"
	httpAdapter "github.com/marmos91/mdus/pkg/adapter/http"
	"github.com/marmos91/mdus/pkg/config"
	"github.com/marmos91/mdus/pkg/dispatch"
	"github.com/marmos91/mdus/pkg/protocol/files"
	"github.com/marmos91/mdus/pkg/server"
	"github.com/marmos91/mdus/pkg/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// ========================================================================
	// Step 1: Command line
	// ========================================================================

	opts, err := parseFlags(args, os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdus: %v\n%s", err, usage)
		return 2
	}

	if opts.version {
		fmt.Printf("mdus %s\n", version)
		return 0
	}

	if opts.initConfig {
		path := opts.configPath
		if path == "" {
			path = config.GetDefaultConfigPath()
		}
		if err := config.InitConfigAt(path, opts.force); err != nil {
			fmt.Fprintf(os.Stderr, "mdus: %v\n", err)
			return 1
		}
		fmt.Printf("Configuration written to %s\n", path)
		return 0
	}

	// ========================================================================
	// Step 2: Configuration
	// ========================================================================

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdus: %v\n", err)
		return 1
	}

	flagWarnings := config.ApplyFlags(cfg, opts.overrides)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "mdus: invalid settings: %v\n", err)
		return 1
	}

	// ========================================================================
	// Step 3: Logging
	// ========================================================================

	logger.SetLevel(cfg.Logging.Level)
	switch cfg.Logging.Color {
	case "always":
		logger.SetColor(true)
	case "never":
		logger.SetColor(false)
	}

	output, closeOutput, err := logger.OpenOutput(cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdus: %v\n", err)
		return 1
	}
	defer func() { _ = closeOutput() }()
	logger.SetOutput(output)

	for _, warning := range append(flagWarnings, config.Warnings(cfg, os.Geteuid())...) {
		logger.Warn("%s", warning)
	}

	logger.Info("mdus %s - %s", version, files.ServerName)
	logger.Info("Starting server setup")

	// ========================================================================
	// Step 4: Store and metrics
	// ========================================================================

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := config.CreateStore(ctx, &cfg.Store, cfg.Server.StrictPaths)
	if err != nil {
		logger.Error("Failed to initialise %s store: %v", cfg.Store.Type, err)
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("Error closing store: %v", err)
		}
	}()

	metricsResult := config.InitializeMetrics(cfg)
	st = store.WithMetrics(st, metricsResult.Store)

	// ========================================================================
	// Step 5: Serve until SIGINT/SIGTERM
	// ========================================================================

	srv := server.New(serverConfig(cfg), st, metricsResult.Dispatch, metricsResult.Server)
	if err := srv.Run(ctx); err != nil {
		logger.Error("mdus failed: %v", err)
		return 1
	}

	logger.Info("Done. mdus will now exit.")
	return 0
}

// serverConfig maps the loaded configuration onto the server components.
func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		HTTP: httpAdapter.HTTPConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			MaxBodySize:     cfg.Server.MaxBodySize,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			IdleTimeout:     cfg.Server.IdleTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		},
		Pool: dispatch.Config{
			Size:             cfg.Server.Threads,
			Capacity:         cfg.Server.QueueCapacity,
			OverflowLogRate:  cfg.RateLimit.OverflowLogPerSecond,
			OverflowLogBurst: cfg.RateLimit.OverflowLogBurst,
		},
		Files: files.Config{
			Prefix:         cfg.Server.FilesPrefix,
			StrictPaths:    cfg.Server.StrictPaths,
			MaxMessageSize: cfg.Server.MaxMessageSize,
		},
		Heartbeat:       cfg.Server.HeartbeatDuration(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DryRun:          cfg.Server.DryRun,
	}
}
