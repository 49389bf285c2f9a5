// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_speech

import (
	"context"
	"fmt"
	"io"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"

	"github.com/rapidaai/ari-voice-gateway/config"
	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

// synthesisChunkBytes is the read granularity of the lazy stream: 3200 bytes
// is 200 ms of 8 kHz / 16-bit mono audio, small enough to start playback
// while the tail is still rendering.
const synthesisChunkBytes = 3200

// ttsOutputFormats maps the configured format names to provider enums.
var ttsOutputFormats = map[string]common.SpeechSynthesisOutputFormat{
	"raw-8khz-16bit-mono-pcm":  common.Raw8Khz16BitMonoPcm,
	"raw-16khz-16bit-mono-pcm": common.Raw16Khz16BitMonoPcm,
	"raw-8khz-8bit-mono-mulaw": common.Raw8Khz8BitMonoMULaw,
	"riff-8khz-16bit-mono-pcm": common.Riff8Khz16BitMonoPcm,
}

// OutputFormatFor resolves a configured TTS output format name, falling back
// to raw 8 kHz / 16-bit mono PCM for unknown names.
func OutputFormatFor(name string) (common.SpeechSynthesisOutputFormat, bool) {
	f, ok := ttsOutputFormats[name]
	if !ok {
		return common.Raw8Khz16BitMonoPcm, false
	}
	return f, true
}

// azureSynthesizer renders text through Azure TTS and exposes the audio as a
// lazy chunk stream pulled from the provider's audio data stream.
type azureSynthesizer struct {
	logger       commons.Logger
	speechConfig *speech.SpeechConfig
	synthesizer  *speech.SpeechSynthesizer
}

// NewAzureSynthesizer builds a TTS session for the per-call configuration.
func NewAzureSynthesizer(logger commons.Logger, cfg *config.CallConfig) (Synthesizer, error) {
	speechConfig, err := speech.NewSpeechConfigFromSubscription(cfg.AzureSpeechSubscriptionKey, cfg.AzureSpeechRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech config: %w", err)
	}

	if err := speechConfig.SetSpeechSynthesisLanguage(cfg.AzureTTSLanguage); err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("failed to set tts language: %w", err)
	}
	if err := speechConfig.SetSpeechSynthesisVoiceName(cfg.AzureTTSVoiceName); err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("failed to set tts voice: %w", err)
	}

	format, known := OutputFormatFor(cfg.AzureTTSOutputFormat)
	if !known {
		logger.Warnw("unknown tts output format, using raw 8khz 16bit mono pcm", "format", cfg.AzureTTSOutputFormat)
	}
	if err := speechConfig.SetSpeechSynthesisOutputFormat(format); err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("failed to set tts output format: %w", err)
	}

	// nil audio config: audio is pulled from the result stream, never played
	// on a local device.
	synthesizer, err := speech.NewSpeechSynthesizerFromConfig(speechConfig, nil)
	if err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	return &azureSynthesizer{
		logger:       logger,
		speechConfig: speechConfig,
		synthesizer:  synthesizer,
	}, nil
}

// Synthesize starts speaking and returns the lazy chunk stream. The stream
// is finite and non-restartable; the channel closes after the last chunk, or
// after a chunk carrying the error.
func (s *azureSynthesizer) Synthesize(ctx context.Context, text string) (<-chan SynthesisChunk, error) {
	var outcome speech.SpeechSynthesisOutcome
	select {
	case outcome = <-s.synthesizer.StartSpeakingTextAsync(text):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if outcome.Error != nil {
		return nil, fmt.Errorf("failed to start synthesis: %w", outcome.Error)
	}

	stream, err := speech.NewAudioDataStreamFromSpeechSynthesisResult(outcome.Result)
	if err != nil {
		outcome.Close()
		return nil, fmt.Errorf("failed to open synthesis stream: %w", err)
	}

	chunks := make(chan SynthesisChunk, 4)
	go func() {
		defer close(chunks)
		defer outcome.Close()
		defer stream.Close()

		buf := make([]byte, synthesisChunkBytes)
		for {
			n, err := stream.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- SynthesisChunk{Audio: chunk}:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case chunks <- SynthesisChunk{Err: fmt.Errorf("synthesis stream read: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return chunks, nil
}

func (s *azureSynthesizer) Close() {
	s.synthesizer.Close()
	s.speechConfig.Close()
}
