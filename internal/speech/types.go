// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_speech

import "context"

// RecognizerEvent is the tagged set of streaming recognition events.
// Consumers type-switch; Ended is terminal and fires exactly once.
type RecognizerEvent interface {
	recognizerEvent()
}

// RecognizerReady fires once the provider session accepts audio.
type RecognizerReady struct{}

// RecognizerPartial carries an intermediate hypothesis.
type RecognizerPartial struct {
	Text string
}

// RecognizerEnded carries the final transcript: all recognized hypotheses
// joined by single spaces and trimmed.
type RecognizerEnded struct {
	FinalText string
}

// RecognizerError carries a provider failure. The owner resolves the
// recognition outcome as an empty transcript.
type RecognizerError struct {
	Err error
}

func (RecognizerReady) recognizerEvent()   {}
func (RecognizerPartial) recognizerEvent() {}
func (RecognizerEnded) recognizerEvent()   {}
func (RecognizerError) recognizerEvent()   {}

// Recognizer is a streaming speech-to-text session fed by PCM pushes.
// At most one exists per call; writes are serialized by the owner.
type Recognizer interface {
	// Start opens the push stream and begins continuous recognition.
	// RecognizerReady is emitted once the session accepts audio.
	Start(ctx context.Context) error

	// Write forwards 8 kHz / 16-bit / mono PCM to the push stream.
	Write(pcm []byte) error

	// Stop requests graceful termination; RecognizerEnded follows once the
	// provider confirms the session stopped.
	Stop()

	// Events delivers recognition events in provider callback order.
	Events() <-chan RecognizerEvent

	// Close releases the provider handles. Safe after Stop.
	Close()
}

// SynthesisChunk is one element of the lazy TTS stream. A chunk with Err set
// terminates the stream; otherwise the channel closing signals end.
type SynthesisChunk struct {
	Audio []byte
	Err   error
}

// Synthesizer turns text into a finite, non-restartable sequence of audio
// chunks in the negotiated output format.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (<-chan SynthesisChunk, error)
	Close()
}
