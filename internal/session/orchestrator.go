// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

import (
	"context"
	"sync"

	internal_ari "github.com/rapidaai/ari-voice-gateway/internal/ari"
	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

// Orchestrator owns the live session registry. One session exists per user
// channel; gateway-created helper channels (snoop, external media) are
// acknowledged and never get a session of their own.
type Orchestrator struct {
	deps   Deps
	logger commons.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewOrchestrator wires the registry with the process-wide dependencies.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		logger:   deps.Logger,
		sessions: make(map[string]*Session),
	}
}

// HandleEvent is the single entry point for switch events, called from the
// event pump goroutine. Routing is by channel id; playback events carry no
// channel and fan out to every live session, which match on playback id.
func (o *Orchestrator) HandleEvent(ev internal_ari.Event) {
	switch e := ev.(type) {
	case internal_ari.StasisStart:
		o.onChannelEnter(e)
	case internal_ari.StasisEnd:
		o.onChannelExit(e)
	case internal_ari.ChannelTalkingStarted:
		o.route(e.Channel.ID, ev)
	case internal_ari.ChannelTalkingFinished:
		o.route(e.Channel.ID, ev)
	case internal_ari.ChannelDtmfReceived:
		o.route(e.Channel.ID, ev)
	case internal_ari.PlaybackFinished, internal_ari.PlaybackFailed:
		o.broadcast(ev)
	}
}

func (o *Orchestrator) onChannelEnter(e internal_ari.StasisStart) {
	if isInternalChannel(e.Args) {
		// Helper channels must be answered so media flows, but they never
		// become sessions.
		o.logger.Debugw("internal channel entered", "channel_id", e.Channel.ID)
		go func() {
			if err := o.deps.ARI.Answer(context.Background(), e.Channel.ID); err != nil {
				o.logger.Debugw("internal channel answer failed", "channel_id", e.Channel.ID, "error", err)
			}
		}()
		return
	}

	s := NewSession(o.deps, e.Channel)

	o.mu.Lock()
	if _, exists := o.sessions[e.Channel.ID]; exists {
		o.mu.Unlock()
		o.logger.Warnw("duplicate stasis start ignored", "channel_id", e.Channel.ID)
		return
	}
	o.sessions[e.Channel.ID] = s
	o.mu.Unlock()

	o.logger.Infow("call entered application",
		"channel_id", e.Channel.ID, "caller", e.Channel.Caller.Number)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		s.Run()
	}()
}

func (o *Orchestrator) onChannelExit(e internal_ari.StasisEnd) {
	o.mu.Lock()
	s, ok := o.sessions[e.Channel.ID]
	if ok {
		delete(o.sessions, e.Channel.ID)
	}
	o.mu.Unlock()

	if !ok {
		return
	}
	o.logger.Infow("call left application", "channel_id", e.Channel.ID)
	s.HandleAriEvent(e)
}

func (o *Orchestrator) route(channelID string, ev internal_ari.Event) {
	o.mu.Lock()
	s, ok := o.sessions[channelID]
	o.mu.Unlock()
	if ok {
		s.HandleAriEvent(ev)
	}
}

func (o *Orchestrator) broadcast(ev internal_ari.Event) {
	o.mu.Lock()
	targets := make([]*Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		targets = append(targets, s)
	}
	o.mu.Unlock()

	for _, s := range targets {
		s.HandleAriEvent(ev)
	}
}

// Shutdown winds down every live session without waiting for the switch.
// Once the event pump is gone no StasisEnd will ever arrive, so sessions are
// released directly.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	targets := make([]*Session, 0, len(o.sessions))
	for id, s := range o.sessions {
		targets = append(targets, s)
		delete(o.sessions, id)
	}
	o.mu.Unlock()

	for _, s := range targets {
		s.notifyExit()
	}
}

// Wait blocks until every live session has finished. Used on shutdown after
// the event pump has stopped.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// isInternalChannel reports whether the stasis arguments mark a
// gateway-created helper channel.
func isInternalChannel(args []string) bool {
	for _, arg := range args {
		if arg == snoopAppArg {
			return true
		}
	}
	return false
}
