/**
 * netdiagd entrypoint.
 *
 * Loads daemon.toml, wires the platform providers into a daemon.Service,
 * and runs it until SIGINT/SIGTERM.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/netdiag/netdiag/internal/capture"
	"github.com/netdiag/netdiag/internal/config"
	"github.com/netdiag/netdiag/internal/daemon"
	"github.com/netdiag/netdiag/internal/providers"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to daemon.toml")
	foreground := flag.Bool("foreground", false, "log to stderr with human-readable output instead of the configured log file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netdiagd: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg, *foreground)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netdiagd: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	netProvider := providers.NewLinuxNetworkProvider()
	wifiProvider := providers.NewLinuxWifiProvider()
	privProvider := providers.NewLinuxPrivilegeProvider()
	autofixProvider := providers.NewLinuxAutofixProvider()
	captureProvider := capture.NewProvider()

	svc := daemon.NewService(cfg, netProvider, wifiProvider, privProvider, autofixProvider, captureProvider, logger).WithConfigPath(*configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		logger.Sugar().Fatalw("netdiagd", "msg", "failed to start", "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	if err := svc.Stop(); err != nil {
		logger.Sugar().Warnw("netdiagd", "msg", "error during shutdown", "error", err)
	}
}

// buildLogger picks between zap's production and development configs:
// foreground runs get a human-readable console encoder, everything else
// gets structured JSON to the configured log file.
func buildLogger(cfg *config.Config, foreground bool) (*zap.Logger, error) {
	if foreground || cfg.General.LogFile == "" {
		zcfg := zap.NewDevelopmentConfig()
		if cfg.General.LogLevel != "" {
			level, err := zap.ParseAtomicLevel(cfg.General.LogLevel)
			if err == nil {
				zcfg.Level = level
			}
		}
		return zcfg.Build()
	}

	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{cfg.General.LogFile}
	if cfg.General.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.General.LogLevel)
		if err == nil {
			zcfg.Level = level
		}
	}
	return zcfg.Build()
}
