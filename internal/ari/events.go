// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_ari

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

// Handler consumes decoded switch events. Called from the pump goroutine;
// implementations must not block for long.
type Handler func(Event)

// EventPump holds the ARI events WebSocket and decodes wire events into the
// typed Event set.
type EventPump struct {
	logger  commons.Logger
	wsURL   string
	conn    *websocket.Conn
	handler Handler
}

// NewEventPump derives the events WebSocket URL from the REST base URL
// (http → ws) and prepares a pump for the given application.
func NewEventPump(logger commons.Logger, baseURL, username, password, appName string, handler Handler) (*EventPump, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ari url %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ari/events"

	q := u.Query()
	q.Set("app", appName)
	q.Set("api_key", username+":"+password)
	q.Set("subscribeAll", "false")
	u.RawQuery = q.Encode()

	return &EventPump{
		logger:  logger,
		wsURL:   u.String(),
		handler: handler,
	}, nil
}

// Connect dials the events WebSocket. Registering the application with the
// switch happens implicitly on connect; failure here is a startup failure.
func (p *EventPump) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect ari event socket: %w", err)
	}
	p.conn = conn
	p.logger.Infow("connected to switch event socket")
	return nil
}

// Run reads and dispatches events until the socket fails or the context is
// cancelled. The context cancellation path closes the socket and returns nil.
func (p *EventPump) Run(ctx context.Context) error {
	if p.conn == nil {
		return fmt.Errorf("event pump not connected")
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ari event socket closed: %w", err)
		}
		if ev := decodeEvent(p.logger, raw); ev != nil {
			p.handler(ev)
		}
	}
}

// envelope is the common wire shape of ARI events; only the fields the typed
// set needs are decoded.
type envelope struct {
	Type     string   `json:"type"`
	Channel  Channel  `json:"channel"`
	Args     []string `json:"args"`
	Digit    string   `json:"digit"`
	Duration int      `json:"duration"`
	Playback Playback `json:"playback"`
}

func decodeEvent(logger commons.Logger, raw []byte) Event {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Warnw("dropping undecodable switch event", "error", err)
		return nil
	}

	switch env.Type {
	case "StasisStart":
		return StasisStart{Channel: env.Channel, Args: env.Args}
	case "StasisEnd":
		return StasisEnd{Channel: env.Channel}
	case "ChannelTalkingStarted":
		return ChannelTalkingStarted{Channel: env.Channel}
	case "ChannelTalkingFinished":
		return ChannelTalkingFinished{Channel: env.Channel, Duration: env.Duration}
	case "ChannelDtmfReceived":
		return ChannelDtmfReceived{Channel: env.Channel, Digit: env.Digit}
	case "PlaybackFinished":
		return PlaybackFinished{Playback: env.Playback}
	case "PlaybackFailed":
		return PlaybackFailed{Playback: env.Playback}
	default:
		// Chatter the gateway does not orchestrate on (varset, dial, etc).
		return nil
	}
}
