// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package config

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// VAD activation modes.
const (
	VadAfterPromptStart = "after_prompt_start"
	VadAfterPromptEnd   = "after_prompt_end"
)

// Prompt modes.
const (
	PromptModeTTS      = "tts"
	PromptModePlayback = "playback"
)

// CallConfig is the per-call tunable subset of the configuration. The process
// defaults are loaded once at startup; every call deep-copies them and applies
// its APP_VAR_* channel variable overrides (see internal/session). The appvar
// tag is the variable name without the APP_VAR_ prefix.
type CallConfig struct {
	AriURL      string `mapstructure:"ari_url" appvar:"ARI_URL" validate:"required"`
	AriUsername string `mapstructure:"ari_username" appvar:"ARI_USERNAME" validate:"required"`
	AriPassword string `mapstructure:"ari_password" appvar:"ARI_PASSWORD" validate:"required"`
	AriAppName  string `mapstructure:"ari_app_name" appvar:"ARI_APP_NAME" validate:"required"`

	AzureSpeechSubscriptionKey string `mapstructure:"azure_speech_subscription_key" appvar:"AZURE_SPEECH_SUBSCRIPTION_KEY" validate:"required"`
	AzureSpeechRegion          string `mapstructure:"azure_speech_region" appvar:"AZURE_SPEECH_REGION" validate:"required"`
	AzureTTSLanguage           string `mapstructure:"azure_tts_language" appvar:"AZURE_TTS_LANGUAGE"`
	AzureTTSVoiceName          string `mapstructure:"azure_tts_voice_name" appvar:"AZURE_TTS_VOICE_NAME"`
	AzureTTSOutputFormat       string `mapstructure:"azure_tts_output_format" appvar:"AZURE_TTS_OUTPUT_FORMAT"`
	AzureSTTLanguage           string `mapstructure:"azure_stt_language" appvar:"AZURE_STT_LANGUAGE"`

	VadActivationMode          string `mapstructure:"vad_activation_mode" appvar:"VAD_ACTIVATION_MODE" validate:"oneof=after_prompt_start after_prompt_end"`
	VadActivationDelayMs       int    `mapstructure:"vad_activation_delay_ms" appvar:"VAD_ACTIVATION_DELAY_MS"`
	TalkDetectSilenceThreshold int    `mapstructure:"talk_detect_silence_threshold" appvar:"TALK_DETECT_SILENCE_THRESHOLD"`
	TalkDetectSpeechThreshold  int    `mapstructure:"talk_detect_speech_threshold" appvar:"TALK_DETECT_SPEECH_THRESHOLD"`

	PromptMode       string `mapstructure:"prompt_mode" appvar:"PROMPT_MODE" validate:"oneof=tts playback"`
	PlaybackFilePath string `mapstructure:"playback_file_path" appvar:"PLAYBACK_FILE_PATH"`

	AriSessionTimeoutMs     int  `mapstructure:"ari_session_timeout_ms" appvar:"ARI_SESSION_TIMEOUT_MS"`
	NoInputTimeoutMs        int  `mapstructure:"no_input_timeout_ms" appvar:"NO_INPUT_TIMEOUT_MS"`
	RtpPrebufferSize        int  `mapstructure:"rtp_prebuffer_size" appvar:"RTP_PREBUFFER_SIZE"`
	EnableDtmf              bool `mapstructure:"enable_dtmf" appvar:"ENABLE_DTMF"`
	DtmfCompletionTimeoutMs int  `mapstructure:"dtmf_completion_timeout_ms" appvar:"DTMF_COMPLETION_TIMEOUT_MS"`

	ExternalMediaServerIP    string `mapstructure:"external_media_server_ip" appvar:"EXTERNAL_MEDIA_SERVER_IP"`
	ExternalMediaServerPort  int    `mapstructure:"external_media_server_port" appvar:"EXTERNAL_MEDIA_SERVER_PORT"`
	ExternalMediaAudioFormat string `mapstructure:"external_media_audio_format" appvar:"EXTERNAL_MEDIA_AUDIO_FORMAT"`

	LogLevel string `mapstructure:"log_level" appvar:"LOG_LEVEL"`
}

// GatewayConfig is the full process configuration: the call defaults plus
// process-only settings that channel variables cannot override.
type GatewayConfig struct {
	CallConfig `mapstructure:",squash"`

	RecordingsDir string `mapstructure:"recordings_dir" validate:"required"`
	DatabasePath  string `mapstructure:"database_path" validate:"required"`
}

// InitConfig reads the .env configuration file (or ENV_PATH) and seeds
// defaults, mirroring the other gateway services.
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env variables.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	v.SetDefault("ARI_URL", "http://localhost:8088")
	v.SetDefault("ARI_USERNAME", "")
	v.SetDefault("ARI_PASSWORD", "")
	v.SetDefault("ARI_APP_NAME", "voice-gateway")

	v.SetDefault("AZURE_SPEECH_SUBSCRIPTION_KEY", "")
	v.SetDefault("AZURE_SPEECH_REGION", "")
	v.SetDefault("AZURE_TTS_LANGUAGE", "en-US")
	v.SetDefault("AZURE_TTS_VOICE_NAME", "en-US-JennyNeural")
	v.SetDefault("AZURE_TTS_OUTPUT_FORMAT", "raw-8khz-16bit-mono-pcm")
	v.SetDefault("AZURE_STT_LANGUAGE", "en-US")

	v.SetDefault("VAD_ACTIVATION_MODE", VadAfterPromptStart)
	v.SetDefault("VAD_ACTIVATION_DELAY_MS", 0)
	v.SetDefault("TALK_DETECT_SILENCE_THRESHOLD", 1200)
	v.SetDefault("TALK_DETECT_SPEECH_THRESHOLD", 500)

	v.SetDefault("PROMPT_MODE", PromptModeTTS)
	v.SetDefault("PLAYBACK_FILE_PATH", "")

	v.SetDefault("ARI_SESSION_TIMEOUT_MS", 300000)
	v.SetDefault("NO_INPUT_TIMEOUT_MS", 10000)
	v.SetDefault("RTP_PREBUFFER_SIZE", 100)
	v.SetDefault("ENABLE_DTMF", true)
	v.SetDefault("DTMF_COMPLETION_TIMEOUT_MS", 2000)

	v.SetDefault("EXTERNAL_MEDIA_SERVER_IP", "127.0.0.1")
	v.SetDefault("EXTERNAL_MEDIA_SERVER_PORT", 9100)
	v.SetDefault("EXTERNAL_MEDIA_AUDIO_FORMAT", "ulaw")

	v.SetDefault("LOG_LEVEL", "debug")

	v.SetDefault("RECORDINGS_DIR", "./recordings")
	v.SetDefault("DATABASE_PATH", "./gateway.db")
}

// GetGatewayConfig unmarshals and validates the process configuration.
// Missing switch or cloud credentials fail here, before any call is taken.
func GetGatewayConfig(v *viper.Viper) (*GatewayConfig, error) {
	var config GatewayConfig
	if err := v.Unmarshal(&config); err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(&config); err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
