package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/config"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/deferred"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/log"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/metrics"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/origin"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/server"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/tracing"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/version"
	"github.com/oxyno-zeta/s3-migration-proxy/pkg/s3-migration-proxy/webhook"
)

// Main package

const shutdownTimeout = 30 * time.Second

func startServer(mainConfDir string) {
	// Create new logger
	logger := log.NewLogger()

	// Create configuration manager
	cfgManager := config.NewManager(logger)

	// Load configuration
	err := cfgManager.Load(mainConfDir)
	if err != nil {
		logger.Fatal(err)
	}

	// Get configuration
	cfg := cfgManager.GetConfig()
	// Configure logger
	err = logger.Configure(cfg.Log.Level, cfg.Log.Format, cfg.Log.FilePath)
	if err != nil {
		logger.Fatal(err)
	}

	// Watch change for logger (special case)
	cfgManager.AddOnChangeHook(func() {
		// Get configuration
		cfg := cfgManager.GetConfig()
		// Configure logger
		err2 := logger.Configure(cfg.Log.Level, cfg.Log.Format, cfg.Log.FilePath)
		if err2 != nil {
			logger.Fatal(err2)
		}
	})

	logger.Debug("Configuration successfully loaded and logger configured")

	// Getting version
	v := version.GetVersion()
	logger.Infof("Starting %s version: %s (git commit: %s) built on %s", version.ServiceName, v.Version, v.GitCommit, v.BuildDate)

	// Generate metrics instance
	metricsCtx := metrics.NewClient()

	// Generate tracing service instance
	tracingSvc, err := tracing.New(cfgManager, logger)
	// Check error
	if err != nil {
		logger.Fatal(err)
	}
	// Prepare on reload hook
	cfgManager.AddOnChangeHook(func() {
		err2 := tracingSvc.Reload()
		if err2 != nil {
			logger.Fatal(err2)
		}
	})

	// Create origin manager
	originManager := origin.NewManager(cfgManager, metricsCtx, logger)
	// Log
	logger.Info("Load legacy and current origins")
	// Load configuration
	err = originManager.Load()
	// Check error
	if err != nil {
		logger.Fatal(err)
	}
	// Prepare on reload hook
	cfgManager.AddOnChangeHook(func() {
		logger.Info("Reload legacy and current origins")
		// Load
		err2 := originManager.Load()
		// Check error
		if err2 != nil {
			logger.Fatal(err2)
		}
	})

	// Create webhook manager
	webhookManager := webhook.NewManager(cfgManager, metricsCtx)
	// Load
	err = webhookManager.Load()
	// Check error
	if err != nil {
		logger.Fatal(err)
	}
	// Prepare on reload hook
	cfgManager.AddOnChangeHook(func() {
		logger.Info("Reload migration webhook client")
		// Load
		err2 := webhookManager.Load()
		// Check error
		if err2 != nil {
			logger.Fatal(err2)
		}
	})

	// Create deferred job runner
	runner := deferred.NewRunner(metricsCtx)

	// Create internal server
	intSvr := server.NewInternalServer(logger, cfgManager, metricsCtx)
	// Generate server
	err = intSvr.GenerateServer()
	if err != nil {
		logger.Fatal(err)
	}
	// Create server
	svr := server.NewServer(logger, cfgManager, metricsCtx, tracingSvc, originManager, webhookManager, runner)
	// Generate server
	err = svr.GenerateServer()
	if err != nil {
		logger.Fatal(err)
	}

	// Stop on signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(svr.Listen)
	g.Go(intSvr.Listen)
	g.Go(func() error {
		// Wait for a signal or a listen failure
		<-gctx.Done()

		logger.Info("Shutting down servers")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Stop accepting requests
		err2 := svr.Shutdown(sctx)
		if err2 != nil {
			logger.Error(err2)
		}

		// Let pending migration notifications finish
		err2 = runner.Wait(sctx)
		if err2 != nil {
			logger.Error(err2)
		}

		err2 = intSvr.Shutdown(sctx)
		if err2 != nil {
			logger.Error(err2)
		}

		// Flush spans
		return tracingSvc.Close()
	})

	if err := g.Wait(); err != nil {
		logger.Fatal(err)
	}
}

func main() {
	var configFolder string

	rootCmd := &cobra.Command{
		Use:   "s3-migration-proxy",
		Short: "Storage migration proxy",
		Long:  "Serve GET and HEAD requests from the current origin, fall back to the legacy origin and ask a worker to migrate what was missing",
		Run: func(_ *cobra.Command, _ []string) {
			startServer(configFolder)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of s3-migration-proxy",
		Run: func(_ *cobra.Command, _ []string) {
			v := version.GetVersion()
			fmt.Printf("version: %s (git commit: %s) built on %s\n", v.Version, v.GitCommit, v.BuildDate)
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringVar(&configFolder, "config", "conf/", "Config folder (default is <Current Working Directory>/conf/)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
