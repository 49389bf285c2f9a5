// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rapidaai/ari-voice-gateway/config"
	internal_ari "github.com/rapidaai/ari-voice-gateway/internal/ari"
	internal_speech "github.com/rapidaai/ari-voice-gateway/internal/speech"
	internal_store "github.com/rapidaai/ari-voice-gateway/internal/store"
	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

// ---------------------------------------------------------------------------
// fake switch
// ---------------------------------------------------------------------------

type playRequest struct {
	bridgeID   string
	media      string
	playbackID string
}

// fakeARI records every call-control request and answers them all
// successfully unless configured otherwise.
type fakeARI struct {
	mu sync.Mutex

	channelVars map[string]string

	answered         []string
	hungup           []string
	continued        []string
	setVars          map[string]string
	bridgesCreated   []string
	bridgesDestroyed []string
	snoops           []string
	externals        []string
	plays            []playRequest
	stoppedPlaybacks []string
}

func newFakeARI(channelVars map[string]string) *fakeARI {
	return &fakeARI{
		channelVars: channelVars,
		setVars:     make(map[string]string),
	}
}

func (f *fakeARI) Answer(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, channelID)
	return nil
}

func (f *fakeARI) Hangup(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hungup = append(f.hungup, channelID)
	return nil
}

func (f *fakeARI) ContinueInDialplan(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.continued = append(f.continued, channelID)
	return nil
}

func (f *fakeARI) GetChannelDetail(_ context.Context, channelID string) (*internal_ari.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &internal_ari.Channel{ID: channelID, ChannelVars: f.channelVars}, nil
}

func (f *fakeARI) GetChannelVariable(_ context.Context, _, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.channelVars[name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", internal_ari.ErrVariableUnset, name)
}

func (f *fakeARI) SetChannelVariable(_ context.Context, _, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setVars[name] = value
	return nil
}

func (f *fakeARI) CreateBridge(_ context.Context, bridgeID, _ string) (*internal_ari.Bridge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bridgesCreated = append(f.bridgesCreated, bridgeID)
	return &internal_ari.Bridge{ID: bridgeID}, nil
}

func (f *fakeARI) AddChannelToBridge(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeARI) DestroyBridge(_ context.Context, bridgeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bridgesDestroyed = append(f.bridgesDestroyed, bridgeID)
	return nil
}

func (f *fakeARI) SnoopChannel(_ context.Context, _, snoopID, _, _ string) (*internal_ari.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snoops = append(f.snoops, snoopID)
	return &internal_ari.Channel{ID: snoopID}, nil
}

func (f *fakeARI) CreateExternalMedia(_ context.Context, channelID, _, _, _ string) (*internal_ari.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.externals = append(f.externals, channelID)
	return &internal_ari.Channel{ID: channelID}, nil
}

func (f *fakeARI) PlayOnBridge(_ context.Context, bridgeID, media, playbackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, playRequest{bridgeID: bridgeID, media: media, playbackID: playbackID})
	return nil
}

func (f *fakeARI) StopPlayback(_ context.Context, playbackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stoppedPlaybacks = append(f.stoppedPlaybacks, playbackID)
	return nil
}

func (f *fakeARI) variable(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setVars[name]
}

func (f *fakeARI) continuedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.continued...)
}

func (f *fakeARI) hungupChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hungup...)
}

func (f *fakeARI) destroyedBridges() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bridgesDestroyed...)
}

func (f *fakeARI) playRequests() []playRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]playRequest(nil), f.plays...)
}

func (f *fakeARI) stopped() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stoppedPlaybacks...)
}

// ---------------------------------------------------------------------------
// fake speech
// ---------------------------------------------------------------------------

// fakeRecognizer emits the configured transcript once the owner stops it,
// mirroring the provider's stream-close-then-session-stopped sequence.
type fakeRecognizer struct {
	final  string
	events chan internal_speech.RecognizerEvent

	mu      sync.Mutex
	started bool
	stopped bool
	closed  bool
	written int
}

func newFakeRecognizer(final string) *fakeRecognizer {
	return &fakeRecognizer{
		final:  final,
		events: make(chan internal_speech.RecognizerEvent, 8),
	}
}

func (r *fakeRecognizer) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	r.events <- internal_speech.RecognizerReady{}
	return nil
}

func (r *fakeRecognizer) Write(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written += len(pcm)
	return nil
}

func (r *fakeRecognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	r.events <- internal_speech.RecognizerEnded{FinalText: r.final}
}

func (r *fakeRecognizer) Events() <-chan internal_speech.RecognizerEvent {
	return r.events
}

func (r *fakeRecognizer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *fakeRecognizer) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// fakeSynthesizer streams the configured chunks and ends.
type fakeSynthesizer struct {
	chunks [][]byte
	err    error
}

func (s *fakeSynthesizer) Synthesize(context.Context, string) (<-chan internal_speech.SynthesisChunk, error) {
	out := make(chan internal_speech.SynthesisChunk, len(s.chunks)+1)
	go func() {
		defer close(out)
		for _, chunk := range s.chunks {
			out <- internal_speech.SynthesisChunk{Audio: chunk}
		}
		if s.err != nil {
			out <- internal_speech.SynthesisChunk{Err: s.err}
		}
	}()
	return out, nil
}

func (s *fakeSynthesizer) Close() {}

// fakeSpeechFactory hands out the canned sessions and counts how many
// recognizers were ever requested.
type fakeSpeechFactory struct {
	mu          sync.Mutex
	transcript  string
	chunks      [][]byte
	synthErr    error
	recognizers []*fakeRecognizer
}

func (f *fakeSpeechFactory) NewRecognizer(commons.Logger, *config.CallConfig) (internal_speech.Recognizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := newFakeRecognizer(f.transcript)
	f.recognizers = append(f.recognizers, rec)
	return rec, nil
}

func (f *fakeSpeechFactory) NewSynthesizer(commons.Logger, *config.CallConfig) (internal_speech.Synthesizer, error) {
	return &fakeSynthesizer{chunks: f.chunks, err: f.synthErr}, nil
}

func (f *fakeSpeechFactory) recognizerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recognizers)
}

func (f *fakeSpeechFactory) recognizer(i int) *fakeRecognizer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recognizers[i]
}

// ---------------------------------------------------------------------------
// fake store
// ---------------------------------------------------------------------------

type fakeStore struct {
	mu   sync.Mutex
	rows []*internal_store.Interaction
}

func (f *fakeStore) Save(_ context.Context, row *internal_store.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeStore) saved() []*internal_store.Interaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*internal_store.Interaction(nil), f.rows...)
}
