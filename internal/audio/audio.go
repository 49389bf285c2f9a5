// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio

import (
	"github.com/zaf/g711"
)

// Negotiated telephony audio format: G.711 µ-law over the wire, 16-bit
// linear PCM once decoded. 8 kHz mono throughout.
const (
	SampleRate     = 8000
	Channels       = 1
	BitsPerSample  = 16
	BytesPerSample = 2

	// FrameDurationMs is the packetization interval of the switch.
	FrameDurationMs = 20

	// UlawFrameBytes is one 20 ms µ-law frame (8000 Hz × 0.020 s × 1 byte).
	UlawFrameBytes = 160

	// PCMFrameBytes is the same frame after µ-law decode.
	PCMFrameBytes = UlawFrameBytes * BytesPerSample
)

// UlawToPCM decodes G.711 µ-law bytes to 16-bit little-endian linear PCM.
// Pure and allocation-bounded: the output is exactly twice the input length.
func UlawToPCM(ulaw []byte) []byte {
	if len(ulaw) == 0 {
		return nil
	}
	return g711.DecodeUlaw(ulaw)
}
