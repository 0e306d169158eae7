// Command server is the governed context store's entrypoint: it loads
// configuration, opens the configured persistence backend, wires the
// policy engine, event bus, and mediator together, starts the retention
// sweeper and the echo HTTP server, and shuts everything down cleanly on
// SIGINT/SIGTERM. Grounded on registry/cmd/registryservice/main.go's
// env-var-driven bootstrap (open storage, build dependencies, start echo,
// e.Logger.Fatal(e.Start(addr))), generalized with graceful shutdown.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ctxstore.dev/governed-context/common"
	"ctxstore.dev/governed-context/config"
	"ctxstore.dev/governed-context/ctxauth"
	"ctxstore.dev/governed-context/eventbus"
	"ctxstore.dev/governed-context/filestore"
	"ctxstore.dev/governed-context/httpapi"
	"ctxstore.dev/governed-context/mediator"
	"ctxstore.dev/governed-context/memstore"
	"ctxstore.dev/governed-context/policy"
	"ctxstore.dev/governed-context/retention"
	"ctxstore.dev/governed-context/store"
)

const envPrefix = "CTXSTORE"

func main() {
	logger := common.Logger

	cfgPath := os.Getenv("CTXSTORE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	cfg = config.ApplyEnvOverrides(cfg, envPrefix)

	var backingStore store.ContextStore
	switch cfg.Storage.Backend {
	case "file":
		fileStore, err := filestore.Open(cfg.Storage.FileDataDir)
		if err != nil {
			logger.WithError(err).Fatal("failed to open file-backed store")
		}
		defer fileStore.Close()
		backingStore = fileStore
	default:
		backingStore = memstore.New()
	}

	policyCfg := policy.Load(cfg.PoliciesPath)
	retentionCfg := retention.Load(cfg.RetentionPath)

	bus := eventbus.New()
	m := mediator.New(backingStore, policyCfg, bus, logger)

	var verifier *ctxauth.Verifier
	if cfg.Auth.Disabled {
		verifier = ctxauth.NewVerifier("", true)
	} else {
		verifier = ctxauth.NewVerifier(cfg.Auth.Secret, false)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSweeper := retention.Spawn(ctx, backingStore, retentionCfg, logger)
	defer stopSweeper()

	server := httpapi.New(m, bus, verifier, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.ListenAddr).Info("starting governed context store")
		if cfg.TLS.CertPath != "" && cfg.TLS.KeyPath != "" {
			errCh <- server.Echo.StartTLS(cfg.Server.ListenAddr, cfg.TLS.CertPath, cfg.TLS.KeyPath)
			return
		}
		errCh <- server.Start(cfg.Server.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Fatal("server exited unexpectedly")
		}
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("shutting down gracefully")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Echo.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("error during graceful shutdown")
		}
	}
}
