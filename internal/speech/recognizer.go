// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_speech

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"

	"github.com/rapidaai/ari-voice-gateway/config"
	internal_audio "github.com/rapidaai/ari-voice-gateway/internal/audio"
	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

// transcriptAggregator accumulates final hypotheses and enforces the
// exactly-once terminal contract. Provider callbacks arrive on SDK threads;
// the aggregator is the synchronization point.
type transcriptAggregator struct {
	mu    sync.Mutex
	parts []string
	done  bool
}

// add records one recognized hypothesis. Returns false when the session has
// already ended; late callbacks are ignored.
func (a *transcriptAggregator) add(text string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return false
	}
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		a.parts = append(a.parts, trimmed)
	}
	return true
}

// finish marks the session terminal and returns the joined transcript.
// Only the first caller gets ok=true; every later call is a no-op.
func (a *transcriptAggregator) finish() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return "", false
	}
	a.done = true
	return strings.TrimSpace(strings.Join(a.parts, " ")), true
}

func (a *transcriptAggregator) terminal() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// azureRecognizer adapts the Azure continuous recognition session to the
// Recognizer contract: a push stream declared 8 kHz / 16-bit / mono, with
// provider callbacks folded into the typed event channel.
type azureRecognizer struct {
	logger commons.Logger

	speechConfig *speech.SpeechConfig
	audioConfig  *audio.AudioConfig
	format       *audio.AudioStreamFormat
	stream       *audio.PushAudioInputStream
	recognizer   *speech.SpeechRecognizer

	agg    transcriptAggregator
	events chan RecognizerEvent

	mu      sync.Mutex
	started bool
}

// NewAzureRecognizer builds a streaming STT session from the per-call
// configuration. Nothing talks to the provider until Start.
func NewAzureRecognizer(logger commons.Logger, cfg *config.CallConfig) (Recognizer, error) {
	speechConfig, err := speech.NewSpeechConfigFromSubscription(cfg.AzureSpeechSubscriptionKey, cfg.AzureSpeechRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech config: %w", err)
	}
	if err := speechConfig.SetSpeechRecognitionLanguage(cfg.AzureSTTLanguage); err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("failed to set stt language: %w", err)
	}

	format, err := audio.GetWaveFormatPCM(internal_audio.SampleRate, internal_audio.BitsPerSample, internal_audio.Channels)
	if err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("failed to create stream format: %w", err)
	}

	stream, err := audio.CreatePushAudioInputStreamFromFormat(format)
	if err != nil {
		format.Close()
		speechConfig.Close()
		return nil, fmt.Errorf("failed to create push stream: %w", err)
	}

	audioConfig, err := audio.NewAudioConfigFromStreamInput(stream)
	if err != nil {
		stream.Close()
		format.Close()
		speechConfig.Close()
		return nil, fmt.Errorf("failed to create audio config: %w", err)
	}

	recognizer, err := speech.NewSpeechRecognizerFromConfig(speechConfig, audioConfig)
	if err != nil {
		audioConfig.Close()
		stream.Close()
		format.Close()
		speechConfig.Close()
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}

	r := &azureRecognizer{
		logger:       logger,
		speechConfig: speechConfig,
		audioConfig:  audioConfig,
		format:       format,
		stream:       stream,
		recognizer:   recognizer,
		events:       make(chan RecognizerEvent, 32),
	}
	r.wireCallbacks()
	return r, nil
}

func (r *azureRecognizer) wireCallbacks() {
	r.recognizer.Recognizing(func(event speech.SpeechRecognitionEventArgs) {
		defer event.Close()
		if r.agg.terminal() {
			return
		}
		r.emit(RecognizerPartial{Text: event.Result.Text})
	})

	r.recognizer.Recognized(func(event speech.SpeechRecognitionEventArgs) {
		defer event.Close()
		if !r.agg.add(event.Result.Text) {
			return
		}
		r.logger.Debugw("recognized hypothesis", "text", event.Result.Text)
	})

	r.recognizer.SessionStopped(func(event speech.SessionEventArgs) {
		defer event.Close()
		if final, ok := r.agg.finish(); ok {
			r.emit(RecognizerEnded{FinalText: final})
		}
	})

	r.recognizer.Canceled(func(event speech.SpeechRecognitionCanceledEventArgs) {
		defer event.Close()
		if event.Reason == common.Error {
			if _, ok := r.agg.finish(); ok {
				r.emit(RecognizerError{Err: fmt.Errorf("recognition canceled: %s", event.ErrorDetails)})
			}
			return
		}
		// EndOfStream and friends end the session normally.
		if final, ok := r.agg.finish(); ok {
			r.emit(RecognizerEnded{FinalText: final})
		}
	})
}

func (r *azureRecognizer) emit(ev RecognizerEvent) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warnw("recognizer event channel full, dropping event", "type", fmt.Sprintf("%T", ev))
	}
}

func (r *azureRecognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("recognizer already started")
	}
	r.started = true
	r.mu.Unlock()

	select {
	case err := <-r.recognizer.StartContinuousRecognitionAsync():
		if err != nil {
			return fmt.Errorf("failed to start continuous recognition: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	r.emit(RecognizerReady{})
	return nil
}

func (r *azureRecognizer) Write(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	if err := r.stream.Write(pcm); err != nil {
		return fmt.Errorf("failed to push audio: %w", err)
	}
	return nil
}

// Stop closes the push stream so the provider sees end-of-audio, then
// requests termination. RecognizerEnded follows from the SessionStopped
// callback.
func (r *azureRecognizer) Stop() {
	r.stream.CloseStream()
	go func() {
		if err := <-r.recognizer.StopContinuousRecognitionAsync(); err != nil {
			r.logger.Warnw("stop recognition failed", "error", err)
		}
	}()
}

func (r *azureRecognizer) Events() <-chan RecognizerEvent {
	return r.events
}

func (r *azureRecognizer) Close() {
	r.recognizer.Close()
	r.audioConfig.Close()
	r.stream.Close()
	r.format.Close()
	r.speechConfig.Close()
}
