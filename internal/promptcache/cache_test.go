// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_promptcache

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_audio "github.com/rapidaai/ari-voice-gateway/internal/audio"
	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

func newTestCache(t *testing.T) *Cache {
	logger, _ := commons.NewApplicationLogger()
	c, err := New(logger)
	require.NoError(t, err)
	return c
}

func TestPut_WritesWavWithMediaRef(t *testing.T) {
	c := newTestCache(t)
	pcm := make([]byte, 640)

	art, err := c.Put(pcm)
	require.NoError(t, err)
	defer c.Remove(art.Path)

	assert.True(t, strings.HasSuffix(art.Path, ".wav"))
	assert.True(t, strings.HasPrefix(art.MediaRef, "sound:"))
	assert.False(t, strings.HasSuffix(art.MediaRef, ".wav"), "media ref must be extension-less")
	assert.Equal(t, "sound:"+strings.TrimSuffix(art.Path, ".wav"), art.MediaRef)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	format, payload, err := internal_audio.ParseWAV(data)
	require.NoError(t, err)
	assert.Equal(t, internal_audio.DefaultWavFormat(), format)
	assert.Equal(t, pcm, payload)
}

func TestPut_UniquePaths(t *testing.T) {
	c := newTestCache(t)
	a, err := c.Put([]byte{1, 2})
	require.NoError(t, err)
	b, err := c.Put([]byte{1, 2})
	require.NoError(t, err)
	defer c.Remove(a.Path)
	defer c.Remove(b.Path)

	assert.NotEqual(t, a.Path, b.Path)
}

func TestRemove_MissingFileIsNotAnError(t *testing.T) {
	c := newTestCache(t)
	art, err := c.Put([]byte{0})
	require.NoError(t, err)

	c.Remove(art.Path)
	// Second removal must be a no-op.
	c.Remove(art.Path)
	c.Remove("")

	_, err = os.Stat(art.Path)
	assert.True(t, os.IsNotExist(err))
}
