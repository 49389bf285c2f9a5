// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_recording

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	internal_audio "github.com/rapidaai/ari-voice-gateway/internal/audio"
	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

// Track names double as subdirectories under the recordings base dir.
const (
	TrackTTS = "tts"
	TrackSTT = "stt"
)

// Writer persists the per-call final recordings:
// <base>/<track>/<unique_id>_<caller_id>_<timestamp>_<track>.wav, always
// 8 kHz / 16-bit / mono.
type Writer struct {
	baseDir string
	logger  commons.Logger
	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

// NewWriter ensures both track directories exist under baseDir.
func NewWriter(logger commons.Logger, baseDir string) (*Writer, error) {
	for _, track := range []string{TrackTTS, TrackSTT} {
		if err := os.MkdirAll(filepath.Join(baseDir, track), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create recordings dir: %w", err)
		}
	}
	return &Writer{baseDir: baseDir, logger: logger, clock: time.Now}, nil
}

// Save renders the PCM onto the given track and returns the written path.
// Empty PCM writes nothing and returns an empty path: a keypad-only call
// legitimately has no speech audio.
func (w *Writer) Save(track, uniqueID, callerID string, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	stamp := w.clock().UTC().Format(time.RFC3339)
	// Colons are unfriendly in filenames.
	stamp = strings.ReplaceAll(stamp, ":", "-")

	name := fmt.Sprintf("%s_%s_%s_%s.wav", sanitize(uniqueID), sanitize(callerID), stamp, track)
	path := filepath.Join(w.baseDir, track, name)

	wav := internal_audio.WrapWAV(pcm, internal_audio.DefaultWavFormat())
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s recording: %w", track, err)
	}

	w.logger.Infow("recording saved", "track", track, "path", path, "bytes", len(pcm))
	return path, nil
}

// sanitize keeps channel and caller identifiers filesystem-safe.
func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, s)
}
