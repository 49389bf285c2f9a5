// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

func newTestStore(t *testing.T) Store {
	logger, _ := commons.NewApplicationLogger()
	s, err := NewStore(logger, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return s
}

func TestSaveAndDefaults(t *testing.T) {
	s := newTestStore(t)

	row := &Interaction{
		UniqueID:         "1741944000.17",
		CallerID:         "100",
		TextToSynthesize: "hola",
		RecognitionMode:  ModeVoice,
		Transcript:       "buenos días",
	}
	require.NoError(t, s.Save(context.Background(), row))

	assert.NotZero(t, row.Id)
	assert.False(t, row.CreatedDate.IsZero(), "BeforeCreate must stamp the row")
}

func TestSave_KeypadOutcome(t *testing.T) {
	s := newTestStore(t)

	row := &Interaction{
		UniqueID:        "1741944000.18",
		RecognitionMode: ModeDTMF,
		KeypadDigits:    "123",
	}
	require.NoError(t, s.Save(context.Background(), row))
	assert.NotZero(t, row.Id)
}
