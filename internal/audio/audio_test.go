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
	"github.com/zaf/g711"
)

func TestUlawToPCM_OutputLength(t *testing.T) {
	for _, n := range []int{0, 1, 160, 1600} {
		in := make([]byte, n)
		out := UlawToPCM(in)
		assert.Equal(t, 2*n, len(out), "decoded length must be 2x input for %d bytes", n)
	}
}

func TestUlawToPCM_SilenceDecodesToZero(t *testing.T) {
	// 0xFF is µ-law positive zero.
	out := UlawToPCM([]byte{0xFF, 0xFF})
	for i := 0; i < len(out); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(out[i : i+2]))
		assert.Equal(t, int16(0), sample)
	}
}

func TestUlawToPCM_FullScale(t *testing.T) {
	// 0x00 is the largest-magnitude µ-law code.
	out := UlawToPCM([]byte{0x00})
	sample := int16(binary.LittleEndian.Uint16(out[0:2]))
	if sample < 0 {
		sample = -sample
	}
	assert.Greater(t, sample, int16(30000), "full-scale code must decode near ±32124")
}

func TestUlawToPCM_RoundTripThroughEncoder(t *testing.T) {
	// Every decoded sample must re-encode to a code that decodes to the
	// same linear value (the table is self-consistent).
	codes := []byte{0x00, 0x10, 0x55, 0x7E, 0x80, 0xAA, 0xF0, 0xFE}
	decoded := UlawToPCM(codes)
	reencoded := g711.EncodeUlaw(decoded)
	assert.Equal(t, decoded, UlawToPCM(reencoded))
}

func TestUlawToPCM_Empty(t *testing.T) {
	assert.Nil(t, UlawToPCM(nil))
	assert.Nil(t, UlawToPCM([]byte{}))
}
