// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

import (
	"context"
	"fmt"

	"github.com/rapidaai/ari-voice-gateway/config"
	internal_ari "github.com/rapidaai/ari-voice-gateway/internal/ari"
	internal_rtp "github.com/rapidaai/ari-voice-gateway/internal/rtp"
	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

// snoopAppArg marks gateway-created channels so their StasisStart is
// acknowledged and ignored instead of spawning a nested session.
const snoopAppArg = "internal"

// mediaTopology is the per-call switch plumbing: the user bridge for prompt
// playback, a spy=in snoop feeding a second bridge, and an external media
// channel forking the snooped audio to our RTP receiver.
type mediaTopology struct {
	userBridgeID  string
	snoopBridgeID string
	snoopID       string
	externalID    string
	rtp           *internal_rtp.Receiver
}

// buildTopology assembles the media path in dependency order. On any step
// failure it tears down what was already created and returns the error; the
// caller finalizes the call with ERROR.
func buildTopology(ctx context.Context, logger commons.Logger, ari internal_ari.Client, cfg *config.CallConfig, channelID string) (*mediaTopology, error) {
	t := &mediaTopology{
		userBridgeID:  channelID + "-user",
		snoopBridgeID: channelID + "-snoop",
		snoopID:       channelID + "-spy",
		externalID:    channelID + "-media",
	}

	fail := func(step string, err error) (*mediaTopology, error) {
		t.teardown(ctx, logger, ari)
		return nil, fmt.Errorf("topology %s: %w", step, err)
	}

	if _, err := ari.CreateBridge(ctx, t.userBridgeID, "mixing"); err != nil {
		return fail("user bridge", err)
	}
	if err := ari.AddChannelToBridge(ctx, t.userBridgeID, channelID); err != nil {
		return fail("join user bridge", err)
	}

	rtp, err := internal_rtp.Listen(logger, cfg.ExternalMediaServerIP, cfg.ExternalMediaServerPort)
	if err != nil {
		return fail("rtp listen", err)
	}
	t.rtp = rtp

	if _, err := ari.SnoopChannel(ctx, channelID, t.snoopID, "in", snoopAppArg); err != nil {
		return fail("snoop", err)
	}

	host := fmt.Sprintf("%s:%d", cfg.ExternalMediaServerIP, rtp.LocalAddr().Port)
	if _, err := ari.CreateExternalMedia(ctx, t.externalID, host, cfg.ExternalMediaAudioFormat, snoopAppArg); err != nil {
		return fail("external media", err)
	}

	if _, err := ari.CreateBridge(ctx, t.snoopBridgeID, "mixing"); err != nil {
		return fail("snoop bridge", err)
	}
	if err := ari.AddChannelToBridge(ctx, t.snoopBridgeID, t.snoopID); err != nil {
		return fail("join snoop", err)
	}
	if err := ari.AddChannelToBridge(ctx, t.snoopBridgeID, t.externalID); err != nil {
		return fail("join external media", err)
	}

	logger.Debugw("media topology up",
		"user_bridge", t.userBridgeID, "snoop_bridge", t.snoopBridgeID, "rtp_port", rtp.LocalAddr().Port)
	return t, nil
}

// teardown releases everything in reverse order. Every step is attempted
// regardless of earlier failures; the switch may already have reclaimed
// resources on hangup, so errors are logged and swallowed.
func (t *mediaTopology) teardown(ctx context.Context, logger commons.Logger, ari internal_ari.Client) {
	drop := func(step string, err error) {
		if err != nil {
			logger.Debugw("topology teardown step failed", "step", step, "error", err)
		}
	}

	if t.externalID != "" {
		drop("hangup external media", ari.Hangup(ctx, t.externalID))
	}
	if t.snoopID != "" {
		drop("hangup snoop", ari.Hangup(ctx, t.snoopID))
	}
	if t.snoopBridgeID != "" {
		drop("destroy snoop bridge", ari.DestroyBridge(ctx, t.snoopBridgeID))
	}
	if t.userBridgeID != "" {
		drop("destroy user bridge", ari.DestroyBridge(ctx, t.userBridgeID))
	}
	if t.rtp != nil {
		t.rtp.Close()
	}
}
