// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_promptcache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	internal_audio "github.com/rapidaai/ari-voice-gateway/internal/audio"
	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

const cacheDirName = "ari-tts-cache"

// Artifact is one cached prompt chunk on disk. MediaRef is the opaque
// reference the switch dereferences (the extension-less sound: form of the
// same path); the chunk owner deletes Path once playback has finished.
type Artifact struct {
	Path     string
	MediaRef string
}

// Cache is the process-wide temporary store for synthesized prompt chunks.
// Filenames are UUIDs, so concurrent sessions never collide.
type Cache struct {
	dir    string
	logger commons.Logger
}

// New ensures the cache directory exists under the OS temp dir and returns
// the store. Called once at startup.
func New(logger commons.Logger) (*Cache, error) {
	dir := filepath.Join(os.TempDir(), cacheDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create prompt cache dir %s: %w", dir, err)
	}
	logger.Debugw("prompt cache ready", "dir", dir)
	return &Cache{dir: dir, logger: logger}, nil
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// Put wraps the PCM chunk into a WAV in the declared synthesis format and
// writes it to a unique path. Asterisk resolves media by extension-less URI,
// hence the sound: reference without ".wav".
func (c *Cache) Put(pcm []byte) (Artifact, error) {
	name := uuid.New().String() + ".wav"
	path := filepath.Join(c.dir, name)

	wav := internal_audio.WrapWAV(pcm, internal_audio.DefaultWavFormat())
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("failed to write prompt chunk %s: %w", path, err)
	}

	return Artifact{
		Path:     path,
		MediaRef: "sound:" + strings.TrimSuffix(path, ".wav"),
	}, nil
}

// Remove deletes a cached chunk. A missing file is not an error: barge-in
// and cleanup can race over the same artifact.
func (c *Cache) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.logger.Warnw("failed to remove prompt chunk", "path", path, "error", err)
	}
}
