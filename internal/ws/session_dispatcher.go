package ws

import (
	"context"

	"go.uber.org/zap"

	"github.com/auralis-ai/live-bridge/pkg/genlive"
)

type incomingHandler func(context.Context, incomingMessage)

func (s *session) dispatchIncoming(ctx context.Context, msg incomingMessage) {
	handlers := map[string]incomingHandler{
		"text-input":                 s.onTextInput,
		"interrupt-signal":           s.onInterruptSignal,
		"mic-audio-data":             s.onMicAudioData,
		"mic-audio-end":              s.onMicAudioEnd,
		"set-listen-mode":            s.onSetListenMode,
		"set-audio-format":           s.onSetAudioFormat,
		"tool-result":                s.onToolResult,
		"frontend-playback-complete": s.onFrontendPlaybackComplete,
		"audio-play-start":           s.onNoop,
		"fetch-profiles":             s.onFetchProfiles,
		"switch-profile":             s.onSwitchProfile,
		"request-init-config":        s.onRequestInitConfig,
		"fetch-history-list":         s.onFetchHistoryList,
		"fetch-and-set-history":      s.onFetchAndSetHistory,
		"create-new-history":         s.onCreateNewHistory,
		"delete-history":             s.onDeleteHistory,
		"heartbeat":                  s.onNoop,
	}

	if handler, ok := handlers[msg.Type]; ok {
		handler(ctx, msg)
		return
	}
	s.logger.Debug("ws unknown message type",
		zap.String("session_id", s.clientUID),
		zap.String("type", msg.Type),
	)
}

func (s *session) onTextInput(_ context.Context, msg incomingMessage) {
	if msg.Text == "" {
		return
	}
	if err := s.live.SendText(msg.Text); err != nil {
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	s.appendHistory("user", msg.Text)
	s.ensureConversation()
	s.state.OnTurnSubmitted()
}

func (s *session) onInterruptSignal(_ context.Context, _ incomingMessage) {
	s.handleInterrupted()
}

func (s *session) onMicAudioData(_ context.Context, msg incomingMessage) {
	if msg.AudioPCM == "" {
		return
	}
	s.handleMicAudioPCM(msg.AudioPCM, msg.AudioRate, msg.AudioCh)
}

func (s *session) onMicAudioEnd(_ context.Context, _ incomingMessage) {
	s.handleMicEnd()
}

func (s *session) onSetListenMode(_ context.Context, msg incomingMessage) {
	s.state.SetMode(msg.ListenMode)
}

func (s *session) onSetAudioFormat(_ context.Context, msg incomingMessage) {
	format := normalizeAudioFormat(msg.AudioFormat)
	s.mu.Lock()
	if format != s.audioFormat && s.opusEnc != nil {
		_ = s.opusEnc.Close()
		s.opusEnc = nil
	}
	s.audioFormat = format
	s.mu.Unlock()
	s.sendJSON(map[string]any{"type": "audio-format-set", "audio_format": format})
}

func (s *session) onToolResult(_ context.Context, msg incomingMessage) {
	if msg.ToolID == "" && msg.ToolName == "" {
		return
	}
	resp := genlive.ToolResponse{
		FunctionResponses: []genlive.FunctionResponse{{
			ID:       msg.ToolID,
			Name:     msg.ToolName,
			Response: msg.Result,
		}},
	}
	if err := s.live.SendToolResponse(resp); err != nil {
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
	}
}

func (s *session) onFrontendPlaybackComplete(_ context.Context, _ incomingMessage) {
	s.sendJSON(map[string]any{"type": "force-new-message"})
}

func (s *session) onFetchProfiles(_ context.Context, _ incomingMessage) {
	s.handleFetchProfiles()
}

func (s *session) onSwitchProfile(ctx context.Context, msg incomingMessage) {
	s.handleProfileSwitch(ctx, msg.File)
}

func (s *session) onRequestInitConfig(_ context.Context, _ incomingMessage) {
	s.sendProfileInfo()
}

func (s *session) onFetchHistoryList(_ context.Context, _ incomingMessage) {
	s.handleHistoryList()
}

func (s *session) onFetchAndSetHistory(_ context.Context, msg incomingMessage) {
	s.handleFetchHistory(msg.HistoryUID)
}

func (s *session) onCreateNewHistory(_ context.Context, _ incomingMessage) {
	s.handleCreateHistory()
}

func (s *session) onDeleteHistory(_ context.Context, msg incomingMessage) {
	s.handleDeleteHistory(msg.HistoryUID)
}

func (s *session) onNoop(_ context.Context, _ incomingMessage) {}
