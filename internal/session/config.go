// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_session

import (
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/rapidaai/ari-voice-gateway/config"
	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

// Script variable names on the inbound channel.
const (
	appVarPrefix   = "APP_VAR_"
	varTextToSpeak = "TEXT_TO_SPEAK"
	varTalkDetect  = "TALK_DETECT(set)"
	varTranscript  = "TRANSCRIPT"
	varDtmfResult  = "DTMF_RESULT"
	varRecognition = "RECOGNITION_MODE"
)

// scriptVarAllowList is the fixed set fetched one by one when the bulk
// variable getter is unavailable on the switch.
var scriptVarAllowList = []string{
	varTextToSpeak,
	"APP_VAR_ARI_URL",
	"APP_VAR_ARI_USERNAME",
	"APP_VAR_ARI_PASSWORD",
	"APP_VAR_ARI_APP_NAME",
	"APP_VAR_AZURE_SPEECH_SUBSCRIPTION_KEY",
	"APP_VAR_AZURE_SPEECH_REGION",
	"APP_VAR_AZURE_TTS_LANGUAGE",
	"APP_VAR_AZURE_TTS_VOICE_NAME",
	"APP_VAR_AZURE_TTS_OUTPUT_FORMAT",
	"APP_VAR_AZURE_STT_LANGUAGE",
	"APP_VAR_VAD_ACTIVATION_MODE",
	"APP_VAR_VAD_ACTIVATION_DELAY_MS",
	"APP_VAR_TALK_DETECT_SILENCE_THRESHOLD",
	"APP_VAR_TALK_DETECT_SPEECH_THRESHOLD",
	"APP_VAR_PROMPT_MODE",
	"APP_VAR_PLAYBACK_FILE_PATH",
	"APP_VAR_ARI_SESSION_TIMEOUT_MS",
	"APP_VAR_NO_INPUT_TIMEOUT_MS",
	"APP_VAR_RTP_PREBUFFER_SIZE",
	"APP_VAR_ENABLE_DTMF",
	"APP_VAR_DTMF_COMPLETION_TIMEOUT_MS",
	"APP_VAR_EXTERNAL_MEDIA_SERVER_IP",
	"APP_VAR_EXTERNAL_MEDIA_SERVER_PORT",
	"APP_VAR_EXTERNAL_MEDIA_AUDIO_FORMAT",
	"APP_VAR_LOG_LEVEL",
}

// MergeCallConfig deep-copies the process defaults and applies every
// APP_VAR_* script variable through the declarative appvar field mapping.
// Unknown keys are logged and ignored; unparsable values are logged and
// dropped without touching the field. The result is immutable for the call.
func MergeCallConfig(logger commons.Logger, defaults config.CallConfig, vars map[string]string) config.CallConfig {
	cfg := defaults // value copy; CallConfig holds no reference types

	for name, raw := range vars {
		if !strings.HasPrefix(name, appVarPrefix) {
			continue
		}
		applyOverride(logger, &cfg, strings.TrimPrefix(name, appVarPrefix), raw)
	}

	// Enumerations fall back to the process default rather than poisoning
	// the call.
	if cfg.VadActivationMode != config.VadAfterPromptStart && cfg.VadActivationMode != config.VadAfterPromptEnd {
		logger.Warnw("invalid vad activation mode, using default",
			"value", cfg.VadActivationMode, "default", defaults.VadActivationMode)
		cfg.VadActivationMode = defaults.VadActivationMode
	}
	if cfg.PromptMode != config.PromptModeTTS && cfg.PromptMode != config.PromptModePlayback {
		logger.Warnw("invalid prompt mode, using default",
			"value", cfg.PromptMode, "default", defaults.PromptMode)
		cfg.PromptMode = defaults.PromptMode
	}

	return cfg
}

// applyOverride decodes one variable into its field. Each key is decoded in
// isolation so a bad value cannot veto the rest of the overrides.
func applyOverride(logger commons.Logger, cfg *config.CallConfig, name, raw string) {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "appvar",
		WeaklyTypedInput: true,
		Metadata:         &md,
	})
	if err != nil {
		logger.Errorw("failed to build override decoder", "error", err)
		return
	}

	if err := dec.Decode(map[string]interface{}{name: raw}); err != nil {
		logger.Warnw("dropping unparsable script override", "name", appVarPrefix+name, "value", raw, "error", err)
		return
	}
	if len(md.Unused) > 0 {
		logger.Warnw("ignoring unknown script variable", "name", appVarPrefix+name)
	}
}
