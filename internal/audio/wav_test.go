// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestWrapWAV_HeaderFields(t *testing.T) {
	pcm := make([]byte, 320)
	out := WrapWAV(pcm, DefaultWavFormat())

	require.Equal(t, 44+len(pcm), len(out))
	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(out[4:8]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[20:22]), "AudioFormat must be PCM")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]))
	assert.Equal(t, uint32(8000), binary.LittleEndian.Uint32(out[24:28]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(out[28:32]), "ByteRate = rate*channels*depth/8")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[32:34]), "BlockAlign")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(out[34:36]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(out[40:44]))
}

func TestWrapWAV_ParseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		format := WavFormat{
			Channels:      uint16(rapid.IntRange(1, 2).Draw(t, "channels")),
			SampleRate:    uint32(rapid.SampledFrom([]int{8000, 16000, 44100}).Draw(t, "rate")),
			BitsPerSample: uint16(rapid.SampledFrom([]int{8, 16}).Draw(t, "depth")),
		}
		pcm := rapid.SliceOfN(rapid.Byte(), 0, 2048).Draw(t, "pcm")

		parsed, data, err := ParseWAV(WrapWAV(pcm, format))
		if err != nil {
			t.Fatalf("round trip failed: %v", err)
		}
		if parsed != format {
			t.Fatalf("format mismatch: %+v != %+v", parsed, format)
		}
		if string(data) != string(pcm) {
			t.Fatalf("payload mismatch")
		}
	})
}

func TestParseWAV_Rejects(t *testing.T) {
	_, _, err := ParseWAV([]byte("too short"))
	assert.Error(t, err)

	bad := WrapWAV(make([]byte, 10), DefaultWavFormat())
	copy(bad[0:4], "JUNK")
	_, _, err = ParseWAV(bad)
	assert.Error(t, err)
}
