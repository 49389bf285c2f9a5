// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WavFormat declares the parameters written into a canonical PCM WAV header.
// Callers are responsible for consistency between the PCM payload and the
// declared parameters.
type WavFormat struct {
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// DefaultWavFormat is the gateway-wide recording format (8 kHz, 16-bit, mono).
func DefaultWavFormat() WavFormat {
	return WavFormat{
		Channels:      Channels,
		SampleRate:    SampleRate,
		BitsPerSample: BitsPerSample,
	}
}

const wavHeaderSize = 44

// WrapWAV prepends a 44-byte RIFF/WAVE header to the given PCM payload.
func WrapWAV(pcm []byte, format WavFormat) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))

	blockAlign := format.Channels * format.BitsPerSample / 8
	byteRate := format.SampleRate * uint32(blockAlign)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, format.Channels)
	binary.Write(&buf, binary.LittleEndian, format.SampleRate)
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, format.BitsPerSample)

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// ParseWAV reads back a canonical header produced by WrapWAV, returning the
// declared format and the PCM payload. Only the fixed 44-byte PCM layout is
// understood; anything else is rejected.
func ParseWAV(data []byte) (WavFormat, []byte, error) {
	var format WavFormat
	if len(data) < wavHeaderSize {
		return format, nil, fmt.Errorf("wav too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return format, nil, fmt.Errorf("not a RIFF/WAVE buffer")
	}
	if string(data[12:16]) != "fmt " {
		return format, nil, fmt.Errorf("missing fmt chunk")
	}
	if audioFormat := binary.LittleEndian.Uint16(data[20:22]); audioFormat != 1 {
		return format, nil, fmt.Errorf("unsupported audio format %d", audioFormat)
	}
	format.Channels = binary.LittleEndian.Uint16(data[22:24])
	format.SampleRate = binary.LittleEndian.Uint32(data[24:28])
	format.BitsPerSample = binary.LittleEndian.Uint16(data[34:36])

	if string(data[36:40]) != "data" {
		return format, nil, fmt.Errorf("missing data chunk")
	}
	size := binary.LittleEndian.Uint32(data[40:44])
	if int(size) > len(data)-wavHeaderSize {
		return format, nil, fmt.Errorf("data chunk size %d exceeds buffer", size)
	}
	return format, data[wavHeaderSize : wavHeaderSize+int(size)], nil
}
