// Package main provides the entry point for shardctl-controller.
//
// shardctl-controller is the control plane process for a shardctl
// cluster: it places shards onto ingesters, initializes and closes them,
// scales sources up and down with ingestion load, and rebalances shards
// across the pool as membership changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shardctl/shardctl/internal/controlplane"
	"github.com/shardctl/shardctl/internal/core/model"
	"github.com/shardctl/shardctl/internal/infra/buildinfo"
	"github.com/shardctl/shardctl/internal/infra/confloader"
	"github.com/shardctl/shardctl/internal/infra/shutdown"
	"github.com/shardctl/shardctl/internal/pool"
	"github.com/shardctl/shardctl/internal/server/config"
	"github.com/shardctl/shardctl/internal/telemetry/logger"
	"github.com/shardctl/shardctl/internal/transport/httprpc"
)

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
		fmt.Println(buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting shardctl-controller",
		"version", buildinfo.Get().Version,
		"config", *configFile)

	poolCfg, err := config.ToPoolConfig(cfg, slogLogger)
	if err != nil {
		return fmt.Errorf("build pool config: %w", err)
	}
	ingesterPool, err := pool.New(poolCfg)
	if err != nil {
		return fmt.Errorf("init pool: %w", err)
	}

	tlsConfig, err := config.ToTLSConfig(&cfg.TLS, slogLogger)
	if err != nil {
		return fmt.Errorf("build TLS config: %w", err)
	}
	var rpcOpts []httprpc.Option
	if tlsConfig != nil {
		rpcOpts = append(rpcOpts, httprpc.WithTLSConfig(tlsConfig))
	}

	tunables := config.ToTunables(&cfg.Scaling)
	metastoreClient := httprpc.NewMetastoreClient(cfg.Metastore.Endpoint, cfg.Metastore.Timeout, rpcOpts...)
	ingesterClients := httprpc.NewIngesterClients(nil, tunables.FireAndForgetTimeout, rpcOpts...)

	shardModel := model.New(tunables.MinScalingPermitInterval)
	controller := controlplane.New(controlplane.Config{
		Model:     shardModel,
		Pool:      ingesterPool,
		Metastore: metastoreClient,
		Ingesters: ingesterClients,
		Tunables:  tunables,
		Logger:    slogLogger,
	})

	rebalanceInterval := cfg.Scaling.RebalanceInterval
	if rebalanceInterval <= 0 {
		rebalanceInterval = config.DefaultRebalanceInterval
	}
	rebalanceStop := startRebalanceLoop(controller, rebalanceInterval)

	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("stopping rebalance loop")
		close(rebalanceStop)
		return nil
	})

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down control plane")
		controller.Shutdown()
		return nil
	})

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("leaving ingester pool")
		return ingesterPool.Shutdown()
	})

	log.Info("controller started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("controller stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ControllerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the structured logger.
func initLogger(cfg *config.ControllerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)
	return log, slog.Default(), nil
}

// startRebalanceLoop runs TriggerRebalance on a ticker until the returned
// channel is closed.
func startRebalanceLoop(controller *controlplane.Controller, interval time.Duration) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				controller.TriggerRebalance(context.Background())
			case <-stop:
				return
			}
		}
	}()
	return stop
}
