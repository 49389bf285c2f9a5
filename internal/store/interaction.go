// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

// Recognition outcome tags written to the interaction record.
const (
	ModeVoice   = "VOICE"
	ModeDTMF    = "DTMF"
	ModeNoInput = "NO_INPUT"
	ModeTimeout = "TIMEOUT"
	ModeError   = "ERROR"
)

// Interaction is one row per call: what was said to the caller, what came
// back, and where the audio lives.
type Interaction struct {
	Id                   uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	UniqueID             string    `json:"uniqueId" gorm:"column:unique_id;type:varchar(100);not null;index"`
	CallerID             string    `json:"callerId" gorm:"column:caller_id;type:varchar(50);not null;default:''"`
	TextToSynthesize     string    `json:"textToSynthesize" gorm:"column:text_to_synthesize;type:text;not null;default:''"`
	SynthesizedAudioPath string    `json:"synthesizedAudioPath" gorm:"column:synthesized_audio_path;type:text;not null;default:''"`
	SttAudioPath         string    `json:"sttAudioPath" gorm:"column:stt_audio_path;type:text;not null;default:''"`
	RecognitionMode      string    `json:"recognitionMode" gorm:"column:recognition_mode;type:varchar(20);not null;default:''"`
	Transcript           string    `json:"transcript" gorm:"column:transcript;type:text;not null;default:''"`
	KeypadDigits         string    `json:"keypadDigits" gorm:"column:keypad_digits;type:varchar(64);not null;default:''"`
	CreatedDate          time.Time `json:"createdDate" gorm:"type:timestamp;not null;<-:create"`
}

func (Interaction) TableName() string {
	return "interactions"
}

func (i *Interaction) BeforeCreate(tx *gorm.DB) error {
	if i.CreatedDate.IsZero() {
		i.CreatedDate = time.Now()
	}
	return nil
}

// Store persists interaction records. Saves are fire-and-forget from the
// session's point of view: a failed insert never fails the call.
type Store interface {
	Save(ctx context.Context, interaction *Interaction) error
}

type sqliteStore struct {
	db     *gorm.DB
	logger commons.Logger
}

// NewStore opens (or creates) the sqlite database and migrates the schema.
func NewStore(log commons.Logger, path string) (Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open interaction store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Interaction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate interaction store: %w", err)
	}
	return &sqliteStore{db: db, logger: log}, nil
}

func (s *sqliteStore) Save(ctx context.Context, interaction *Interaction) error {
	if err := s.db.WithContext(ctx).Create(interaction).Error; err != nil {
		return fmt.Errorf("failed to save interaction for %s: %w", interaction.UniqueID, err)
	}
	s.logger.Debugf("saved interaction: uniqueId=%s, mode=%s", interaction.UniqueID, interaction.RecognitionMode)
	return nil
}
