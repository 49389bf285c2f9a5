// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

// sessionEvent is the tagged set of everything that can reach the session
// loop. Switch events, media frames, speech callbacks and timers all funnel
// through the single inbox; the loop goroutine is the sole writer of session
// state.
type sessionEvent interface {
	sessionEvent()
}

// evTalkingStarted: talk-detect voice-start on the user channel.
type evTalkingStarted struct{}

// evTalkingFinished: talk-detect voice-end with the talking duration.
type evTalkingFinished struct {
	durationMs int
}

// evDtmf carries one keypad digit.
type evDtmf struct {
	digit string
}

// evPlaybackDone: a prompt chunk playback completed or failed on the switch.
type evPlaybackDone struct {
	playbackID string
	failed     bool
}

// evRtpFrame is one reordered live media frame (µ-law payload).
type evRtpFrame struct {
	payload []byte
}

// evRtpError: the media socket failed; the session finalizes with ERROR.
type evRtpError struct {
	err error
}

// evSynthesisChunk is one TTS audio chunk ready for caching and playback.
type evSynthesisChunk struct {
	pcm []byte
}

// evSynthesisEnd: the TTS stream is exhausted.
type evSynthesisEnd struct{}

// evSynthesisError: the TTS stream failed mid-way.
type evSynthesisError struct {
	err error
}

// evRecognizerPartial is an intermediate hypothesis, logged only.
type evRecognizerPartial struct {
	text string
}

// evRecognizerEnded carries the final transcript.
type evRecognizerEnded struct {
	finalText string
}

// evRecognizerError: the recognition session failed; the call continues with
// an empty transcript.
type evRecognizerError struct {
	err error
}

// timerKind discriminates the session's one-shot timers.
type timerKind int

const (
	timerSession timerKind = iota
	timerNoInput
	timerKeypad
	timerVadArm
)

// evTimer: one of the session timers fired.
type evTimer struct {
	kind timerKind
}

func (evTalkingStarted) sessionEvent()    {}
func (evTalkingFinished) sessionEvent()   {}
func (evDtmf) sessionEvent()              {}
func (evPlaybackDone) sessionEvent()      {}
func (evRtpFrame) sessionEvent()          {}
func (evRtpError) sessionEvent()          {}
func (evSynthesisChunk) sessionEvent()    {}
func (evSynthesisEnd) sessionEvent()      {}
func (evSynthesisError) sessionEvent()    {}
func (evRecognizerPartial) sessionEvent() {}
func (evRecognizerEnded) sessionEvent()   {}
func (evRecognizerError) sessionEvent()   {}
func (evTimer) sessionEvent()             {}
