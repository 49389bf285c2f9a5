// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/rapidaai/ari-voice-gateway/config"
	internal_ari "github.com/rapidaai/ari-voice-gateway/internal/ari"
	internal_audio "github.com/rapidaai/ari-voice-gateway/internal/audio"
	internal_promptcache "github.com/rapidaai/ari-voice-gateway/internal/promptcache"
	internal_recording "github.com/rapidaai/ari-voice-gateway/internal/recording"
	internal_speech "github.com/rapidaai/ari-voice-gateway/internal/speech"
	internal_store "github.com/rapidaai/ari-voice-gateway/internal/store"
	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

// Session lifecycle states.
const (
	stAnswering     = "answering"
	stPlayingPrompt = "playing_prompt"
	stListening     = "listening"
	stRecognizing   = "recognizing"
	stFinalizing    = "finalizing"
	stTerminated    = "terminated"
)

// Capture modes once input has committed to one side.
const (
	captureVoice  = "voice"
	captureKeypad = "keypad"
)

const (
	inboxCapacity  = 256
	controlTimeout = 5 * time.Second
	persistTimeout = 5 * time.Second
)

// SpeechFactory builds the per-call cloud speech sessions. The indirection
// keeps the session testable without provider credentials.
type SpeechFactory interface {
	NewRecognizer(logger commons.Logger, cfg *config.CallConfig) (internal_speech.Recognizer, error)
	NewSynthesizer(logger commons.Logger, cfg *config.CallConfig) (internal_speech.Synthesizer, error)
}

type azureSpeechFactory struct{}

// AzureSpeechFactory returns the production factory backed by the Azure SDK.
func AzureSpeechFactory() SpeechFactory { return azureSpeechFactory{} }

func (azureSpeechFactory) NewRecognizer(logger commons.Logger, cfg *config.CallConfig) (internal_speech.Recognizer, error) {
	return internal_speech.NewAzureRecognizer(logger, cfg)
}

func (azureSpeechFactory) NewSynthesizer(logger commons.Logger, cfg *config.CallConfig) (internal_speech.Synthesizer, error) {
	return internal_speech.NewAzureSynthesizer(logger, cfg)
}

// Deps is everything a session borrows from the process.
type Deps struct {
	Logger     commons.Logger
	ARI        internal_ari.Client
	Speech     SpeechFactory
	Cache      *internal_promptcache.Cache
	Recordings *internal_recording.Writer
	Store      internal_store.Store
	Defaults   config.CallConfig
}

// promptChunk is one queued prompt segment awaiting playback.
type promptChunk struct {
	playbackID string
	mediaRef   string
	path       string
}

// Session drives one call end to end: answer, prompt, capture, finalize.
// All state below is owned by the loop goroutine; external goroutines only
// post events through the inbox.
type Session struct {
	deps   Deps
	logger commons.Logger

	channelID string
	callerID  string
	cfg       config.CallConfig

	inbox  chan sessionEvent
	exitCh chan struct{}
	postMu sync.Mutex
	posted bool // inbox accepting events
	ctx    context.Context
	cancel context.CancelFunc

	fsm  *fsm.FSM
	topo *mediaTopology

	// prompt side
	textToSpeak    string
	synth          internal_speech.Synthesizer
	promptQueue    []promptChunk
	artifacts      map[string]string
	activePlayback string
	promptStarted  bool
	promptStopped  bool
	promptFinished bool
	synthDone      bool
	ttsPCM         []byte

	// capture side
	vadArmed        bool
	captureMode     string
	recognizer      internal_speech.Recognizer
	recognizerUp    bool
	sttUlaw         []byte
	digits          strings.Builder
	finalTranscript string

	sessionTimer *time.Timer
	noInputTimer *time.Timer
	keypadTimer  *time.Timer
	vadArmTimer  *time.Timer

	finalized   bool
	cleanupOnce sync.Once
}

// NewSession prepares a session for a channel that just entered the
// application. Run must be called on its own goroutine.
func NewSession(deps Deps, channel internal_ari.Channel) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		deps:      deps,
		logger:    deps.Logger.With("unique_id", channel.ID, "caller_id", channel.Caller.Number),
		channelID: channel.ID,
		callerID:  channel.Caller.Number,
		inbox:     make(chan sessionEvent, inboxCapacity),
		exitCh:    make(chan struct{}, 1),
		posted:    true,
		ctx:       ctx,
		cancel:    cancel,
		artifacts: make(map[string]string),
	}

	s.fsm = fsm.NewFSM(
		stAnswering,
		fsm.Events{
			{Name: "play", Src: []string{stAnswering}, Dst: stPlayingPrompt},
			{Name: "listen", Src: []string{stPlayingPrompt}, Dst: stListening},
			{Name: "capture", Src: []string{stPlayingPrompt, stListening}, Dst: stRecognizing},
			{Name: "finalize", Src: []string{stAnswering, stPlayingPrompt, stListening, stRecognizing}, Dst: stFinalizing},
			{Name: "terminate", Src: []string{stAnswering, stPlayingPrompt, stListening, stRecognizing, stFinalizing}, Dst: stTerminated},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				s.logger.Debugw("session state change", "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)
	return s
}

// HandleAriEvent translates a routed switch event into the inbox. Called
// from the event pump goroutine.
func (s *Session) HandleAriEvent(ev internal_ari.Event) {
	switch e := ev.(type) {
	case internal_ari.StasisEnd:
		s.notifyExit()
	case internal_ari.ChannelTalkingStarted:
		s.post(evTalkingStarted{})
	case internal_ari.ChannelTalkingFinished:
		s.post(evTalkingFinished{durationMs: e.Duration})
	case internal_ari.ChannelDtmfReceived:
		s.post(evDtmf{digit: e.Digit})
	case internal_ari.PlaybackFinished:
		s.post(evPlaybackDone{playbackID: e.Playback.ID})
	case internal_ari.PlaybackFailed:
		s.post(evPlaybackDone{playbackID: e.Playback.ID, failed: true})
	}
}

// Run executes the session to completion. It returns once the channel has
// left the application and cleanup has finished.
func (s *Session) Run() {
	defer s.closeInbox()
	defer s.cleanup()

	if err := s.setup(); err != nil {
		s.logger.Errorw("session setup failed", "error", err)
		s.finalize(internal_store.ModeError)
	}

	for {
		select {
		case <-s.exitCh:
			s.handleExit()
			return
		case ev := <-s.inbox:
			s.dispatch(ev)
		}
	}
}

// post delivers an event to the loop without blocking the caller. A full
// inbox drops the event with a warning; control flow never wedges on a
// slow session.
func (s *Session) post(ev sessionEvent) {
	s.postMu.Lock()
	defer s.postMu.Unlock()
	if !s.posted {
		return
	}
	select {
	case s.inbox <- ev:
	default:
		s.logger.Warnw("session inbox full, dropping event", "type", fmt.Sprintf("%T", ev))
	}
}

// notifyExit signals channel departure. Delivered out of band so a full
// inbox can never delay teardown.
func (s *Session) notifyExit() {
	select {
	case s.exitCh <- struct{}{}:
	default:
	}
}

func (s *Session) closeInbox() {
	s.postMu.Lock()
	s.posted = false
	s.postMu.Unlock()
}

// ---------------------------------------------------------------------------
// setup
// ---------------------------------------------------------------------------

func (s *Session) setup() error {
	ctx, cancel := context.WithTimeout(s.ctx, controlTimeout)
	defer cancel()

	vars := s.fetchScriptVars(ctx)
	s.cfg = MergeCallConfig(s.logger, s.deps.Defaults, vars)
	s.textToSpeak = strings.TrimSpace(vars[varTextToSpeak])

	if t := s.cfg.AriSessionTimeoutMs; t > 0 {
		s.sessionTimer = s.after(t, timerSession)
	}

	if err := s.deps.ARI.Answer(ctx, s.channelID); err != nil {
		return err
	}

	if s.cfg.PromptMode == config.PromptModeTTS && s.textToSpeak == "" {
		return fmt.Errorf("%s is not set on the channel", varTextToSpeak)
	}
	if s.cfg.PromptMode == config.PromptModePlayback && s.cfg.PlaybackFilePath == "" {
		return fmt.Errorf("playback prompt mode without a playback file")
	}

	topo, err := buildTopology(ctx, s.logger, s.deps.ARI, &s.cfg, s.channelID)
	if err != nil {
		return err
	}
	s.topo = topo
	topo.rtp.SubscribeLive(func(payload []byte) {
		s.post(evRtpFrame{payload: payload})
	})
	go s.pumpRtpErrors()

	_ = s.fsm.Event(s.ctx, "play")
	return s.startPrompt()
}

// fetchScriptVars reads the dialplan-provided variables, preferring the bulk
// channel detail and falling back to per-name gets over the fixed allow list.
func (s *Session) fetchScriptVars(ctx context.Context) map[string]string {
	if detail, err := s.deps.ARI.GetChannelDetail(ctx, s.channelID); err == nil && len(detail.ChannelVars) > 0 {
		return detail.ChannelVars
	}

	vars := make(map[string]string)
	for _, name := range scriptVarAllowList {
		value, err := s.deps.ARI.GetChannelVariable(ctx, s.channelID, name)
		if err != nil || value == "" {
			continue
		}
		vars[name] = value
	}
	return vars
}

// ---------------------------------------------------------------------------
// prompt
// ---------------------------------------------------------------------------

func (s *Session) startPrompt() error {
	if s.cfg.PromptMode == config.PromptModePlayback {
		media := "sound:" + strings.TrimSuffix(s.cfg.PlaybackFilePath, ".wav")
		playbackID := uuid.New().String()
		if err := s.deps.ARI.PlayOnBridge(s.ctx, s.topo.userBridgeID, media, playbackID); err != nil {
			return err
		}
		s.activePlayback = playbackID
		s.onPromptStarted()
		return nil
	}

	synth, err := s.deps.Speech.NewSynthesizer(s.logger, &s.cfg)
	if err != nil {
		return err
	}
	s.synth = synth
	chunks, err := synth.Synthesize(s.ctx, s.textToSpeak)
	if err != nil {
		return err
	}
	go s.pumpSynthesis(chunks)
	return nil
}

func (s *Session) pumpSynthesis(chunks <-chan internal_speech.SynthesisChunk) {
	for chunk := range chunks {
		if chunk.Err != nil {
			s.post(evSynthesisError{err: chunk.Err})
			return
		}
		s.post(evSynthesisChunk{pcm: chunk.Audio})
	}
	s.post(evSynthesisEnd{})
}

func (s *Session) onSynthesisChunk(pcm []byte) {
	if s.finalized || s.promptStopped || len(pcm) == 0 {
		return
	}
	s.ttsPCM = append(s.ttsPCM, pcm...)

	artifact, err := s.deps.Cache.Put(pcm)
	if err != nil {
		s.logger.Warnw("failed to cache prompt chunk, skipping", "error", err)
		return
	}
	chunk := promptChunk{
		playbackID: uuid.New().String(),
		mediaRef:   artifact.MediaRef,
		path:       artifact.Path,
	}
	s.artifacts[chunk.playbackID] = artifact.Path
	s.promptQueue = append(s.promptQueue, chunk)

	if s.activePlayback == "" {
		s.startNextChunk()
	}
}

// startNextChunk dequeues until one chunk actually starts playing. A chunk
// the switch refuses is dropped, not retried.
func (s *Session) startNextChunk() {
	for len(s.promptQueue) > 0 {
		next := s.promptQueue[0]
		s.promptQueue = s.promptQueue[1:]

		if err := s.deps.ARI.PlayOnBridge(s.ctx, s.topo.userBridgeID, next.mediaRef, next.playbackID); err != nil {
			s.logger.Warnw("prompt chunk playback refused", "playback_id", next.playbackID, "error", err)
			s.dropArtifact(next.playbackID)
			continue
		}
		s.activePlayback = next.playbackID
		s.onPromptStarted()
		return
	}
}

// onPromptStarted fires once, on the first chunk that reaches the caller.
func (s *Session) onPromptStarted() {
	if s.promptStarted {
		return
	}
	s.promptStarted = true
	if s.cfg.VadActivationMode == config.VadAfterPromptStart {
		s.scheduleVadArm(s.cfg.VadActivationDelayMs)
	}
}

func (s *Session) onPlaybackDone(playbackID string, failed bool) {
	s.dropArtifact(playbackID)
	if playbackID != s.activePlayback {
		return
	}
	s.activePlayback = ""
	if failed {
		s.logger.Warnw("prompt chunk playback failed", "playback_id", playbackID)
	}
	if s.finalized || s.promptStopped {
		return
	}

	if len(s.promptQueue) > 0 {
		s.startNextChunk()
		return
	}
	if s.cfg.PromptMode == config.PromptModePlayback || s.synthDone {
		s.onPromptFinished()
	}
}

func (s *Session) onSynthesisEnd() {
	s.synthDone = true
	if s.finalized || s.promptStopped {
		return
	}
	// The stream can drain after the last queued chunk already finished.
	if s.activePlayback == "" && len(s.promptQueue) == 0 {
		s.onPromptFinished()
	}
}

// onSynthesisError abandons the prompt but keeps the call alive: capture
// still happens so the script gets a result.
func (s *Session) onSynthesisError(err error) {
	s.logger.Errorw("prompt synthesis failed, abandoning prompt", "error", err)
	s.synthDone = true
	s.stopPrompt()
	s.onPromptFinished()
}

func (s *Session) onPromptFinished() {
	if s.promptFinished || s.finalized {
		return
	}
	s.promptFinished = true

	if !s.vadArmed && s.vadArmTimer == nil && s.captureMode == "" {
		// after_prompt_end arms here; a failed prompt arms regardless of mode.
		s.scheduleVadArm(s.cfg.VadActivationDelayMs)
	}
	s.maybeListen()
}

// stopPrompt cancels the active playback and discards the queue. Used by
// barge-in, keypad preemption and synthesis failure.
func (s *Session) stopPrompt() {
	if s.promptStopped {
		return
	}
	s.promptStopped = true

	for _, chunk := range s.promptQueue {
		s.dropArtifact(chunk.playbackID)
	}
	s.promptQueue = nil

	if s.activePlayback != "" {
		if err := s.deps.ARI.StopPlayback(s.ctx, s.activePlayback); err != nil {
			s.logger.Debugw("stop playback failed", "playback_id", s.activePlayback, "error", err)
		}
	}
}

func (s *Session) dropArtifact(playbackID string) {
	if path, ok := s.artifacts[playbackID]; ok {
		s.deps.Cache.Remove(path)
		delete(s.artifacts, playbackID)
	}
}

// ---------------------------------------------------------------------------
// voice activity and capture
// ---------------------------------------------------------------------------

func (s *Session) scheduleVadArm(delayMs int) {
	if s.vadArmed || s.vadArmTimer != nil || s.finalized {
		return
	}
	if delayMs <= 0 {
		s.armVad()
		return
	}
	s.vadArmTimer = s.after(delayMs, timerVadArm)
}

// armVad opens the capture window: pre-buffering starts, talk detection is
// enabled on the channel, and the no-input clock begins.
func (s *Session) armVad() {
	if s.vadArmed || s.finalized || s.captureMode != "" {
		return
	}
	s.vadArmed = true

	s.topo.rtp.StartPreBuffering(s.cfg.RtpPrebufferSize)

	value := fmt.Sprintf("%d,%d", s.cfg.TalkDetectSilenceThreshold, s.cfg.TalkDetectSpeechThreshold)
	if err := s.deps.ARI.SetChannelVariable(s.ctx, s.channelID, varTalkDetect, value); err != nil {
		s.logger.Errorw("failed to enable talk detection", "error", err)
		s.finalize(internal_store.ModeError)
		return
	}

	if t := s.cfg.NoInputTimeoutMs; t > 0 {
		s.noInputTimer = s.after(t, timerNoInput)
	}
	s.maybeListen()
}

func (s *Session) maybeListen() {
	if s.vadArmed && s.promptFinished && s.captureMode == "" && s.fsm.Current() == stPlayingPrompt {
		_ = s.fsm.Event(s.ctx, "listen")
	}
}

func (s *Session) onTalkingStarted() {
	if !s.vadArmed || s.captureMode != "" || s.finalized {
		return
	}
	s.captureMode = captureVoice
	s.stopTimer(&s.noInputTimer)
	if !s.promptFinished {
		s.stopPrompt()
	}
	_ = s.fsm.Event(s.ctx, "capture")

	// Flush strictly before any live frame: the loop is the sole writer, so
	// frames posted by the live sink queue behind this event.
	flushed := s.topo.rtp.StopPreBufferingAndFlush()

	rec, err := s.deps.Speech.NewRecognizer(s.logger, &s.cfg)
	if err != nil {
		s.logger.Errorw("failed to create recognizer, resolving empty transcript", "error", err)
		s.finalize(internal_store.ModeVoice)
		return
	}
	s.recognizer = rec
	go s.pumpRecognizer(rec)

	if err := rec.Start(s.ctx); err != nil {
		s.logger.Errorw("failed to start recognition, resolving empty transcript", "error", err)
		s.finalize(internal_store.ModeVoice)
		return
	}
	s.recognizerUp = true

	if len(flushed) > 0 {
		s.sttUlaw = append(s.sttUlaw, flushed...)
		if err := rec.Write(internal_audio.UlawToPCM(flushed)); err != nil {
			s.logger.Warnw("failed to push pre-buffered audio", "error", err)
		}
	}
}

func (s *Session) onRtpFrame(payload []byte) {
	if s.captureMode != captureVoice || !s.recognizerUp || s.finalized {
		return
	}
	s.sttUlaw = append(s.sttUlaw, payload...)
	if err := s.recognizer.Write(internal_audio.UlawToPCM(payload)); err != nil {
		s.logger.Warnw("failed to push live audio", "error", err)
	}
}

func (s *Session) onTalkingFinished(durationMs int) {
	if s.captureMode != captureVoice || !s.recognizerUp || s.finalized {
		return
	}
	s.logger.Debugw("voice end detected", "talking_ms", durationMs)
	s.recognizer.Stop()
}

func (s *Session) pumpRecognizer(rec internal_speech.Recognizer) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-rec.Events():
			switch e := ev.(type) {
			case internal_speech.RecognizerReady:
				s.logger.Debugw("recognition session ready")
			case internal_speech.RecognizerPartial:
				s.post(evRecognizerPartial{text: e.Text})
			case internal_speech.RecognizerEnded:
				s.post(evRecognizerEnded{finalText: e.FinalText})
			case internal_speech.RecognizerError:
				s.post(evRecognizerError{err: e.Err})
			}
		}
	}
}

func (s *Session) pumpRtpErrors() {
	select {
	case <-s.ctx.Done():
	case err := <-s.topo.rtp.Errors():
		s.post(evRtpError{err: err})
	}
}

// ---------------------------------------------------------------------------
// keypad
// ---------------------------------------------------------------------------

func (s *Session) onDtmf(digit string) {
	if !s.cfg.EnableDtmf || s.finalized {
		return
	}

	if s.captureMode != captureKeypad {
		// First digit: keypad preempts everything, including an active
		// voice capture.
		if s.recognizerUp {
			s.recognizer.Stop()
			s.recognizerUp = false
		}
		s.captureMode = captureKeypad
		s.stopTimer(&s.noInputTimer)
		if !s.promptFinished {
			s.stopPrompt()
		}
		if cur := s.fsm.Current(); cur == stPlayingPrompt || cur == stListening {
			_ = s.fsm.Event(s.ctx, "capture")
		}
	}

	s.digits.WriteString(digit)
	s.stopTimer(&s.keypadTimer)
	s.keypadTimer = s.after(s.cfg.DtmfCompletionTimeoutMs, timerKeypad)
	s.logger.Debugw("keypad digit collected", "digits", s.digits.Len())
}

// ---------------------------------------------------------------------------
// timers
// ---------------------------------------------------------------------------

func (s *Session) after(ms int, kind timerKind) *time.Timer {
	return time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
		s.post(evTimer{kind: kind})
	})
}

func (s *Session) stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (s *Session) stopAllTimers() {
	s.stopTimer(&s.sessionTimer)
	s.stopTimer(&s.noInputTimer)
	s.stopTimer(&s.keypadTimer)
	s.stopTimer(&s.vadArmTimer)
}

func (s *Session) onTimer(kind timerKind) {
	switch kind {
	case timerVadArm:
		s.vadArmTimer = nil
		s.armVad()
	case timerKeypad:
		if s.captureMode == captureKeypad {
			s.finalize(internal_store.ModeDTMF)
		}
	case timerNoInput:
		if s.captureMode == "" && !s.finalized {
			s.logger.Infow("no caller input before timeout")
			s.finalize(internal_store.ModeNoInput)
		}
	case timerSession:
		if !s.finalized {
			s.logger.Warnw("session timeout reached, hanging up")
			s.finalize(internal_store.ModeTimeout)
		}
	}
}

// ---------------------------------------------------------------------------
// dispatch and finalization
// ---------------------------------------------------------------------------

func (s *Session) dispatch(ev sessionEvent) {
	switch e := ev.(type) {
	case evTalkingStarted:
		s.onTalkingStarted()
	case evTalkingFinished:
		s.onTalkingFinished(e.durationMs)
	case evDtmf:
		s.onDtmf(e.digit)
	case evPlaybackDone:
		s.onPlaybackDone(e.playbackID, e.failed)
	case evRtpFrame:
		s.onRtpFrame(e.payload)
	case evRtpError:
		if !s.finalized {
			s.logger.Errorw("media socket failed", "error", e.err)
			s.finalize(internal_store.ModeError)
		}
	case evSynthesisChunk:
		s.onSynthesisChunk(e.pcm)
	case evSynthesisEnd:
		s.onSynthesisEnd()
	case evSynthesisError:
		s.onSynthesisError(e.err)
	case evRecognizerPartial:
		s.logger.Debugw("partial hypothesis", "text", e.text)
	case evRecognizerEnded:
		if s.captureMode == captureVoice && !s.finalized {
			s.finalTranscript = e.finalText
			s.finalize(internal_store.ModeVoice)
		}
	case evRecognizerError:
		if s.captureMode == captureVoice && !s.finalized {
			s.logger.Errorw("recognition failed, resolving empty transcript", "error", e.err)
			s.finalize(internal_store.ModeVoice)
		}
	case evTimer:
		s.onTimer(e.kind)
	}
}

// finalize resolves the call exactly once: result variables are written,
// recordings and the interaction row are persisted, the media path is torn
// down, and the channel either continues in the dialplan or is hung up.
func (s *Session) finalize(outcome string) {
	if s.finalized {
		return
	}
	s.finalized = true
	_ = s.fsm.Event(s.ctx, "finalize")
	s.stopAllTimers()

	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()

	s.writeResultVariables(ctx, outcome)

	ttsPath, sttPath := s.saveRecordings(outcome)
	s.persist(outcome, ttsPath, sttPath)

	s.cleanup()

	switch outcome {
	case internal_store.ModeVoice, internal_store.ModeDTMF, internal_store.ModeError:
		// The script branches on RECOGNITION_MODE, including errors.
		if err := s.deps.ARI.ContinueInDialplan(ctx, s.channelID); err != nil {
			s.logger.Errorw("failed to continue in dialplan, hanging up", "error", err)
			_ = s.deps.ARI.Hangup(ctx, s.channelID)
		}
	default:
		if err := s.deps.ARI.Hangup(ctx, s.channelID); err != nil {
			s.logger.Debugw("hangup failed", "error", err)
		}
	}

	s.logger.Infow("session finalized", "outcome", outcome,
		"transcript_len", len(s.finalTranscript), "digits", s.digits.Len())
}

func (s *Session) writeResultVariables(ctx context.Context, outcome string) {
	set := func(name, value string) {
		if err := s.deps.ARI.SetChannelVariable(ctx, s.channelID, name, value); err != nil {
			s.logger.Warnw("failed to write result variable", "name", name, "error", err)
		}
	}

	switch outcome {
	case internal_store.ModeVoice:
		set(varTranscript, s.finalTranscript)
	case internal_store.ModeDTMF:
		set(varDtmfResult, s.digits.String())
	}
	set(varRecognition, outcome)
}

// saveRecordings writes the final prompt and caller audio. Keypad-only calls
// carry no speech capture worth keeping.
func (s *Session) saveRecordings(outcome string) (ttsPath, sttPath string) {
	if s.deps.Recordings == nil {
		return "", ""
	}
	var err error
	if ttsPath, err = s.deps.Recordings.Save(internal_recording.TrackTTS, s.channelID, s.callerID, s.ttsPCM); err != nil {
		s.logger.Errorw("failed to save prompt recording", "error", err)
	}
	if outcome != internal_store.ModeDTMF {
		pcm := internal_audio.UlawToPCM(s.sttUlaw)
		if sttPath, err = s.deps.Recordings.Save(internal_recording.TrackSTT, s.channelID, s.callerID, pcm); err != nil {
			s.logger.Errorw("failed to save capture recording", "error", err)
		}
	}
	return ttsPath, sttPath
}

// persist stores the interaction row off the hot path; a failed insert is
// logged, never fatal to the call.
func (s *Session) persist(outcome, ttsPath, sttPath string) {
	if s.deps.Store == nil {
		return
	}
	row := &internal_store.Interaction{
		UniqueID:             s.channelID,
		CallerID:             s.callerID,
		TextToSynthesize:     s.textToSpeak,
		SynthesizedAudioPath: ttsPath,
		SttAudioPath:         sttPath,
		RecognitionMode:      outcome,
		Transcript:           s.finalTranscript,
		KeypadDigits:         s.digits.String(),
	}
	logger := s.logger
	store := s.deps.Store
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := store.Save(ctx, row); err != nil {
			logger.Errorw("failed to persist interaction", "error", err)
		}
	}()
}

// handleExit runs when the channel leaves the application. A departure
// before finalization is the caller hanging up mid-call.
func (s *Session) handleExit() {
	if !s.finalized {
		s.finalized = true
		s.logger.Infow("caller left before completion")
		s.stopAllTimers()
		ttsPath, sttPath := s.saveRecordings("")
		s.persist("", ttsPath, sttPath)
	}
	s.cleanup()
}

// cleanup releases every per-call resource exactly once. Safe from any
// path: finalize, channel exit and Run's defer all funnel here.
func (s *Session) cleanup() {
	s.cleanupOnce.Do(func() {
		s.stopAllTimers()

		if s.recognizer != nil {
			if s.recognizerUp {
				s.recognizer.Stop()
				s.recognizerUp = false
			}
			s.recognizer.Close()
		}
		if s.synth != nil {
			s.synth.Close()
		}

		for id := range s.artifacts {
			s.dropArtifact(id)
		}

		if s.topo != nil {
			ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
			defer cancel()
			s.topo.teardown(ctx, s.logger, s.deps.ARI)
		}

		s.cancel()
		_ = s.fsm.Event(context.Background(), "terminate")
		s.logger.Debugw("session cleaned up")
	})
}
