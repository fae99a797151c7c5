package ws

import "encoding/json"

// incomingMessage is the frontend command envelope. Field names stay
// wire-compatible with the web console.
type incomingMessage struct {
	Type        string          `json:"type"`
	Text        string          `json:"text,omitempty"`
	File        string          `json:"file,omitempty"`
	AudioPCM    string          `json:"audio_pcm,omitempty"`
	AudioRate   int             `json:"audio_sample_rate,omitempty"`
	AudioCh     int             `json:"audio_channels,omitempty"`
	AudioFormat string          `json:"audio_format,omitempty"`
	ListenMode  string          `json:"listen_mode,omitempty"`
	ToolID      string          `json:"tool_id,omitempty"`
	ToolName    string          `json:"tool_name,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	HistoryUID  string          `json:"history_uid,omitempty"`
}
