// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_ari

// CallerID is the caller identification block on a channel.
type CallerID struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Channel is the ARI channel resource, reduced to the fields the gateway
// reads. ChannelVars is only populated on channel detail fetches when the
// switch exports them.
type Channel struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	State       string            `json:"state"`
	Caller      CallerID          `json:"caller"`
	ChannelVars map[string]string `json:"channelvars,omitempty"`
}

// Bridge is the ARI bridge resource.
type Bridge struct {
	ID         string   `json:"id"`
	Technology string   `json:"technology"`
	BridgeType string   `json:"bridge_type"`
	Channels   []string `json:"channels"`
}

// Playback is the ARI playback resource.
type Playback struct {
	ID       string `json:"id"`
	MediaURI string `json:"media_uri"`
	State    string `json:"state"`
}

// Event is the tagged set of switch events the gateway consumes. Consumers
// type-switch exhaustively; unknown wire events are dropped by the pump.
type Event interface {
	ariEvent()
}

// StasisStart fires when a channel enters the application, with the
// dialplan-provided arguments.
type StasisStart struct {
	Channel Channel
	Args    []string
}

// StasisEnd fires when a channel leaves the application.
type StasisEnd struct {
	Channel Channel
}

// ChannelTalkingStarted is the switch's talk-detect voice-start signal.
type ChannelTalkingStarted struct {
	Channel Channel
}

// ChannelTalkingFinished is the voice-end signal with the talking duration.
type ChannelTalkingFinished struct {
	Channel  Channel
	Duration int
}

// ChannelDtmfReceived carries one keypad digit.
type ChannelDtmfReceived struct {
	Channel Channel
	Digit   string
}

// PlaybackFinished fires when a playback completes.
type PlaybackFinished struct {
	Playback Playback
}

// PlaybackFailed fires when a playback could not complete.
type PlaybackFailed struct {
	Playback Playback
}

func (StasisStart) ariEvent()            {}
func (StasisEnd) ariEvent()              {}
func (ChannelTalkingStarted) ariEvent()  {}
func (ChannelTalkingFinished) ariEvent() {}
func (ChannelDtmfReceived) ariEvent()    {}
func (PlaybackFinished) ariEvent()       {}
func (PlaybackFailed) ariEvent()         {}
