// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_speech

import (
	"testing"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_JoinsHypothesesWithSingleSpaces(t *testing.T) {
	var a transcriptAggregator
	assert.True(t, a.add("buenos"))
	assert.True(t, a.add("  días  "))
	assert.True(t, a.add(""))

	final, ok := a.finish()
	require.True(t, ok)
	assert.Equal(t, "buenos días", final)
}

func TestAggregator_FinishIsExactlyOnce(t *testing.T) {
	var a transcriptAggregator
	a.add("hello")

	final, ok := a.finish()
	require.True(t, ok)
	assert.Equal(t, "hello", final)

	_, ok = a.finish()
	assert.False(t, ok, "second finish must be a no-op")
}

func TestAggregator_IgnoresCallbacksAfterTerminal(t *testing.T) {
	var a transcriptAggregator
	a.add("first")
	_, ok := a.finish()
	require.True(t, ok)

	assert.False(t, a.add("late hypothesis"), "adds after terminal are ignored")
	assert.True(t, a.terminal())
}

func TestAggregator_EmptySession(t *testing.T) {
	var a transcriptAggregator
	final, ok := a.finish()
	require.True(t, ok)
	assert.Equal(t, "", final)
}

func TestOutputFormatFor(t *testing.T) {
	f, ok := OutputFormatFor("raw-8khz-16bit-mono-pcm")
	assert.True(t, ok)
	assert.Equal(t, common.Raw8Khz16BitMonoPcm, f)

	f, ok = OutputFormatFor("something-nonsense")
	assert.False(t, ok)
	assert.Equal(t, common.Raw8Khz16BitMonoPcm, f, "unknown names fall back to the default format")
}
