// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rapidaai/ari-voice-gateway/config"
	internal_ari "github.com/rapidaai/ari-voice-gateway/internal/ari"
	internal_promptcache "github.com/rapidaai/ari-voice-gateway/internal/promptcache"
	internal_recording "github.com/rapidaai/ari-voice-gateway/internal/recording"
	internal_session "github.com/rapidaai/ari-voice-gateway/internal/session"
	internal_store "github.com/rapidaai/ari-voice-gateway/internal/store"
	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

func main() {
	vConfig, err := config.InitConfig()
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}
	cfg, err := config.GetGatewayConfig(vConfig)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := commons.NewApplicationLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(logger, cfg); err != nil {
		logger.Errorw("gateway stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Infow("gateway stopped")
}

func run(logger commons.Logger, cfg *config.GatewayConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := internal_store.NewStore(logger, cfg.DatabasePath)
	if err != nil {
		return err
	}
	cache, err := internal_promptcache.New(logger)
	if err != nil {
		return err
	}
	recordings, err := internal_recording.NewWriter(logger, cfg.RecordingsDir)
	if err != nil {
		return err
	}

	ariClient := internal_ari.NewClient(logger, cfg.AriURL, cfg.AriUsername, cfg.AriPassword, cfg.AriAppName)

	orchestrator := internal_session.NewOrchestrator(internal_session.Deps{
		Logger:     logger,
		ARI:        ariClient,
		Speech:     internal_session.AzureSpeechFactory(),
		Cache:      cache,
		Recordings: recordings,
		Store:      store,
		Defaults:   cfg.CallConfig,
	})

	pump, err := internal_ari.NewEventPump(logger,
		cfg.AriURL, cfg.AriUsername, cfg.AriPassword, cfg.AriAppName,
		orchestrator.HandleEvent)
	if err != nil {
		return err
	}
	if err := pump.Connect(ctx); err != nil {
		return err
	}

	logger.Infow("gateway ready",
		"app", cfg.AriAppName, "switch", cfg.AriURL, "region", cfg.AzureSpeechRegion)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pump.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		// No more switch events will arrive; release whatever is live.
		orchestrator.Shutdown()
		orchestrator.Wait()
		return nil
	})

	return g.Wait()
}
