package genlive

import (
	"encoding/json"
	"strings"
)

const audioMIMEPrefix = "audio/pcm"

// Blob carries base64-encoded inline media with its MIME type.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Part is one element of a model or user turn: either text or inline data.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Content represents a single role-tagged turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// ModelTurn wraps the ordered part sequence of one model turn.
type ModelTurn struct {
	Parts []Part `json:"parts"`
}

// FunctionCall represents a functionCall.
type FunctionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// ToolCall represents a toolCall.
type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls,omitempty"`
}

// ToolCallCancellation lists the call IDs the server no longer wants answered.
type ToolCallCancellation struct {
	IDs []string `json:"ids,omitempty"`
}

// FunctionResponse represents a functionResponse.
type FunctionResponse struct {
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// ToolResponse is the caller-supplied payload answering a ToolCall.
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses,omitempty"`
}

// ServerContent is the content variant of an inbound server message. The
// interrupted flag suppresses all further processing of the same message;
// turnComplete does not.
type ServerContent struct {
	Interrupted  bool       `json:"interrupted,omitempty"`
	TurnComplete bool       `json:"turnComplete,omitempty"`
	ModelTurn    *ModelTurn `json:"modelTurn,omitempty"`
}

// ContentEvent is the envelope delivered on the content channel. It carries
// the full original part sequence, audio parts included, so a consumer can
// re-derive the audio stream if it chooses.
type ContentEvent struct {
	ModelTurn ModelTurn `json:"modelTurn"`
}

// serverMessage is the closed inbound union decoded at the transport
// boundary. Exactly one branch is expected to be non-nil per message.
type serverMessage struct {
	SetupComplete        json.RawMessage       `json:"setupComplete,omitempty"`
	ToolCall             *ToolCall             `json:"toolCall,omitempty"`
	ToolCallCancellation *ToolCallCancellation `json:"toolCallCancellation,omitempty"`
	ServerContent        *ServerContent        `json:"serverContent,omitempty"`
}

type setupMessage struct {
	Setup        SessionConfig `json:"setup"`
	SystemPrompt string        `json:"systemPrompt"`
}

type clientContentPayload struct {
	Turns        []Content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

type clientContentMessage struct {
	ClientContent clientContentPayload `json:"clientContent"`
}

type realtimeInputPayload struct {
	MediaChunks []Blob `json:"mediaChunks"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInputPayload `json:"realtimeInput"`
}

type toolResponseMessage struct {
	ToolResponse ToolResponse `json:"toolResponse"`
}

// ClientContentInput describes one outbound user turn. A nil TurnComplete
// defaults to true.
type ClientContentInput struct {
	Parts        []Part
	TurnComplete *bool
}

func newClientContentMessage(input ClientContentInput) clientContentMessage {
	turnComplete := true
	if input.TurnComplete != nil {
		turnComplete = *input.TurnComplete
	}
	return clientContentMessage{
		ClientContent: clientContentPayload{
			Turns: []Content{{
				Role:  "user",
				Parts: input.Parts,
			}},
			TurnComplete: turnComplete,
		},
	}
}

func isAudioPart(part Part) bool {
	return part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, audioMIMEPrefix)
}
