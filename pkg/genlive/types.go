package genlive

import "time"

// Config represents the transport-level client configuration.
type Config struct {
	APIKey   string
	Endpoint string
}

// SpeechConfig selects the prebuilt voice used for audio responses.
type SpeechConfig struct {
	VoiceConfig *VoiceConfig `json:"voiceConfig,omitempty"`
}

// VoiceConfig represents a voiceConfig.
type VoiceConfig struct {
	PrebuiltVoiceConfig *PrebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

// PrebuiltVoiceConfig represents a prebuiltVoiceConfig.
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName,omitempty"`
}

// GenerationConfig holds the model parameters negotiated at setup time.
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	Temperature        *float32      `json:"temperature,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// SessionConfig is the immutable session payload supplied at connect time.
// SystemPrompt travels beside the setup object on the wire; when empty the
// built-in default prompt is sent instead.
type SessionConfig struct {
	Model            string            `json:"model"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
	SystemPrompt     string            `json:"-"`
}

// StreamingLogEntry is an ephemeral diagnostic record emitted on every
// significant client transition. It is never persisted.
type StreamingLogEntry struct {
	Time    time.Time
	Type    string
	Message any
}
