package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	appconfig "github.com/auralis-ai/live-bridge/internal/config"
	"github.com/auralis-ai/live-bridge/internal/session/fsm"
	"github.com/auralis-ai/live-bridge/internal/storage"
	"github.com/auralis-ai/live-bridge/pkg/audio"
	"github.com/auralis-ai/live-bridge/pkg/audio/opusx"
	"github.com/auralis-ai/live-bridge/pkg/genlive"
)

const (
	upstreamSampleRate = 16000
	modelSampleRate    = 24000
	outChunkDurationMs = 300
	opusBitrate        = 32000
)

// Handler represents a handler.
type Handler struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	config   appconfig.Config
	sessions map[string]*session
	mu       sync.Mutex
}

type session struct {
	conn    *websocket.Conn
	sendMu  sync.Mutex
	logger  *zap.Logger
	live    *genlive.Client
	handler *Handler
	state   *fsm.Machine

	clientUID string

	mu             sync.Mutex
	profileName    string
	profileUID     string
	voice          string
	systemPrompt   string
	historyUID     string
	modelText      string
	inConversation bool
	audioFormat    string
	frameDuration  int
	outBuffer      []byte
	opusEnc        *audio.OpusEncoder
	micResampler   *audio.StreamResampler
	micRate        int
}

// NewHandler executes the newHandler function.
func NewHandler(logger *zap.Logger, cfg appconfig.Config) *Handler {
	return &Handler{
		logger:   logger,
		config:   cfg,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle executes the handle method.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionID := uuid.NewString()
	sess := &session{
		conn:          conn,
		logger:        h.logger,
		handler:       h,
		state:         fsm.New(),
		clientUID:     sessionID,
		profileName:   h.config.ProfileConfig.ProfileName,
		profileUID:    h.config.ProfileConfig.ProfileUID,
		voice:         h.config.ProfileConfig.Voice,
		systemPrompt:  h.config.ProfileConfig.SystemPrompt,
		audioFormat:   normalizeAudioFormat(h.config.ClientAudioFormat),
		frameDuration: h.config.FrameDuration,
	}
	sess.state.SetMode(h.config.ListenMode)

	sess.logger.Info("ws session opened",
		zap.String("session_id", sess.clientUID),
		zap.String("profile_uid", sess.profileUID),
		zap.String("audio_format", sess.audioFormat),
		zap.Int("frame_duration", sess.frameDuration),
	)

	h.registerSession(sess)
	sess.sendProfileInfo()

	sess.live = genlive.NewClient(genlive.Config{
		APIKey:   h.config.GeminiAPIKey,
		Endpoint: h.config.GeminiEndpoint,
	}, h.logger)
	sess.wireLiveEvents()
	sess.connectUpstream(ctx)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			sess.logger.Debug("ws connection closed", zap.Error(err))
			break
		}
		var msg incomingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sess.sendJSON(map[string]any{"type": "error", "message": "invalid json"})
			continue
		}
		if msg.Type != "heartbeat" && msg.Type != "mic-audio-data" {
			sess.logger.Debug("ws incoming message",
				zap.String("session_id", sess.clientUID),
				zap.String("type", msg.Type),
			)
		}
		sess.dispatchIncoming(ctx, msg)
	}

	sess.teardown()
	sess.logger.Info("ws session closed", zap.String("session_id", sess.clientUID))
	h.unregisterSession(sess.clientUID)
}

// CloseAll force-closes every live frontend connection. Used at shutdown.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.Unlock()
	for _, sess := range sessions {
		_ = sess.conn.Close()
	}
}

func (h *Handler) registerSession(sess *session) {
	h.mu.Lock()
	h.sessions[sess.clientUID] = sess
	h.mu.Unlock()
}

func (h *Handler) unregisterSession(clientUID string) {
	h.mu.Lock()
	delete(h.sessions, clientUID)
	h.mu.Unlock()
}

func (s *session) connectUpstream(ctx context.Context) {
	s.mu.Lock()
	voice := s.voice
	systemPrompt := s.systemPrompt
	s.mu.Unlock()

	sessionCfg := genlive.SessionConfig{
		Model: s.handler.config.GeminiModel,
		GenerationConfig: &genlive.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genlive.SpeechConfig{
				VoiceConfig: &genlive.VoiceConfig{
					PrebuiltVoiceConfig: &genlive.PrebuiltVoiceConfig{VoiceName: voice},
				},
			},
		},
		SystemPrompt: systemPrompt,
	}
	if err := s.live.Connect(ctx, sessionCfg); err != nil {
		s.logger.Warn("live connect failed",
			zap.String("session_id", s.clientUID),
			zap.Error(err),
		)
		s.sendJSON(map[string]any{"type": "error", "message": "live backend unavailable: " + err.Error()})
	}
}

func (s *session) wireLiveEvents() {
	s.live.OnSetupComplete(func() {
		s.state.OnListenStart()
		s.sendJSON(map[string]any{"type": "control", "text": "backend-ready"})
	})
	s.live.OnAudio(func(pcm []byte) {
		s.handleModelAudio(pcm)
	})
	s.live.OnContent(func(envelope genlive.ContentEvent) {
		s.handleModelContent(envelope)
	})
	s.live.OnInterrupted(func() {
		s.handleInterrupted()
	})
	s.live.OnTurnComplete(func() {
		s.handleTurnComplete()
	})
	s.live.OnToolCall(func(call genlive.ToolCall) {
		s.handleToolCall(call)
	})
	s.live.OnToolCallCancellation(func(cancel genlive.ToolCallCancellation) {
		s.sendJSON(map[string]any{"type": "tool-call-cancel", "tool_ids": cancel.IDs})
	})
	s.live.OnClose(func(reason string) {
		s.logger.Warn("live session lost",
			zap.String("session_id", s.clientUID),
			zap.String("reason", reason),
		)
		s.sendJSON(map[string]any{"type": "error", "message": "live backend disconnected: " + reason})
		s.endConversation()
	})
}

func (s *session) teardown() {
	s.live.Disconnect()
	s.mu.Lock()
	if s.micResampler != nil {
		s.micResampler.Close()
		s.micResampler = nil
	}
	if s.opusEnc != nil {
		_ = s.opusEnc.Close()
		s.opusEnc = nil
	}
	s.outBuffer = nil
	s.mu.Unlock()
}

// Model output path.

func (s *session) handleModelAudio(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.State() != fsm.StateSpeaking {
		s.state.OnSpeakStart()
	}
	s.ensureConversationLocked()
	s.outBuffer = append(s.outBuffer, pcm...)
	s.flushModelAudioLocked(false)
}

func (s *session) handleModelContent(envelope genlive.ContentEvent) {
	var text strings.Builder
	for _, part := range envelope.ModelTurn.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureConversationLocked()
	s.modelText += text.String()
	s.sendJSON(map[string]any{"type": "full-text", "text": s.modelText})
}

func (s *session) handleInterrupted() {
	s.mu.Lock()
	s.outBuffer = nil
	s.state.OnInterrupt()
	s.sendJSON(map[string]any{"type": "control", "text": "playback-interrupt"})
	s.endConversationLocked()
	s.mu.Unlock()
}

func (s *session) handleTurnComplete() {
	s.mu.Lock()
	s.flushModelAudioLocked(true)
	modelText := s.modelText
	s.sendJSON(map[string]any{"type": "backend-synth-complete"})
	s.endConversationLocked()
	s.mu.Unlock()

	if modelText != "" {
		s.appendHistory("model", modelText)
	}
	s.state.OnTurnComplete()
}

func (s *session) handleToolCall(call genlive.ToolCall) {
	for _, fc := range call.FunctionCalls {
		s.sendJSON(map[string]any{
			"type":      "tool-call",
			"tool_id":   fc.ID,
			"tool_name": fc.Name,
			"arguments": fc.Args,
		})
	}
}

func (s *session) flushModelAudioLocked(final bool) {
	if len(s.outBuffer) == 0 {
		return
	}
	if s.audioFormat == "opus" {
		s.flushOpusLocked(final)
		return
	}

	chunkBytes := modelSampleRate * outChunkDurationMs / 1000 * 2
	for len(s.outBuffer) >= chunkBytes {
		chunk := s.outBuffer[:chunkBytes]
		s.outBuffer = s.outBuffer[chunkBytes:]
		s.sendPCMChunk(chunk)
	}
	if final && len(s.outBuffer) > 0 {
		chunk := s.outBuffer
		s.outBuffer = nil
		s.sendPCMChunk(chunk)
	}
}

func (s *session) flushOpusLocked(final bool) {
	if s.opusEnc == nil {
		enc, err := audio.NewOpusEncoder(modelSampleRate, 1, s.frameDuration)
		if err != nil {
			s.logger.Warn("opus encoder init failed", zap.Error(err))
			s.audioFormat = "pcm16"
			s.flushModelAudioLocked(final)
			return
		}
		if err := enc.SetBitrate(opusBitrate); err != nil {
			s.logger.Warn("opus bitrate not applied", zap.Error(err))
		}
		s.logger.Info("opus encoder ready",
			zap.String("backend", opusx.Backend()),
			zap.Int("frame_size", enc.FrameSize()),
			zap.Int("frame_duration", enc.FrameDuration()),
		)
		s.opusEnc = enc
	}
	frameBytes := s.opusEnc.FrameBytes()
	for len(s.outBuffer) >= frameBytes {
		frame := s.outBuffer[:frameBytes]
		s.outBuffer = s.outBuffer[frameBytes:]
		s.sendOpusFrame(frame)
	}
	if final && len(s.outBuffer) > 0 {
		// Encode pads short frames with silence.
		frame := s.outBuffer
		s.outBuffer = nil
		s.sendOpusFrame(frame)
	}
}

func (s *session) sendPCMChunk(pcm []byte) {
	s.sendJSON(map[string]any{
		"type":              "audio",
		"audio_pcm":         base64.StdEncoding.EncodeToString(pcm),
		"audio_format":      "pcm16",
		"audio_sample_rate": modelSampleRate,
		"audio_channels":    1,
		"slice_length":      outChunkDurationMs,
	})
}

func (s *session) sendOpusFrame(pcm []byte) {
	encoded, err := s.opusEnc.Encode(pcm)
	if err != nil {
		s.logger.Warn("opus encode failed", zap.Error(err))
		return
	}
	if len(encoded) == 0 {
		return
	}
	s.sendJSON(map[string]any{
		"type":              "audio",
		"audio_opus":        base64.StdEncoding.EncodeToString(encoded),
		"audio_format":      "opus",
		"audio_sample_rate": modelSampleRate,
		"audio_channels":    1,
		"frame_duration":    s.frameDuration,
	})
}

// Mic input path.

func (s *session) handleMicAudioPCM(audioPCM string, rate int, channels int) {
	raw, err := base64.StdEncoding.DecodeString(audioPCM)
	if err != nil {
		s.sendJSON(map[string]any{"type": "error", "message": "invalid mic audio payload"})
		return
	}
	if len(raw) == 0 {
		return
	}
	if rate <= 0 {
		rate = s.handler.config.InputSampleRate
	}
	if channels <= 0 {
		channels = 1
	}

	if s.state.State() == fsm.StateIdle {
		s.state.OnListenStart()
	}

	samples := audio.BytesToInt16Slice(raw)
	mono := audio.DownmixToMono(samples, channels)

	if rate == upstreamSampleRate {
		s.sendMicChunk(audio.Int16SliceToBytesInto(nil, mono))
		return
	}

	s.mu.Lock()
	if s.micResampler == nil || s.micRate != rate {
		if s.micResampler != nil {
			s.micResampler.Close()
		}
		resampler, err := audio.NewStreamResampler(rate, upstreamSampleRate)
		if err != nil {
			s.mu.Unlock()
			s.logger.Warn("mic resampler init failed", zap.Int("rate", rate), zap.Error(err))
			s.sendJSON(map[string]any{"type": "error", "message": "unsupported mic sample rate"})
			return
		}
		s.micResampler = resampler
		s.micRate = rate
	}
	if err := s.micResampler.AppendPCM(mono); err != nil {
		s.mu.Unlock()
		s.logger.Warn("mic resample failed", zap.Error(err))
		return
	}
	resampled := s.micResampler.PopAll()
	s.mu.Unlock()

	if len(resampled) == 0 {
		return
	}
	out := audio.Int16SliceToBytesInto(nil, resampled)
	audio.ReleaseInt16(resampled)
	s.sendMicChunk(out)
}

func (s *session) handleMicEnd() {
	s.mu.Lock()
	if s.micResampler != nil {
		if err := s.micResampler.Flush(); err != nil {
			s.logger.Warn("mic resampler flush failed", zap.Error(err))
		}
		if tail := s.micResampler.PopAll(); len(tail) > 0 {
			out := audio.Int16SliceToBytesInto(nil, tail)
			audio.ReleaseInt16(tail)
			s.mu.Unlock()
			s.sendMicChunk(out)
			s.mu.Lock()
		}
	}
	modelText := s.modelText
	s.mu.Unlock()

	s.state.OnTurnSubmitted()
	s.ensureConversation()
	if modelText == "" {
		s.sendJSON(map[string]any{"type": "full-text", "text": "Thinking..."})
	}
}

func (s *session) sendMicChunk(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	blob := genlive.Blob{
		MIMEType: fmt.Sprintf("audio/pcm;rate=%d", upstreamSampleRate),
		Data:     base64.StdEncoding.EncodeToString(pcm),
	}
	if err := s.live.SendRealtimeInput([]genlive.Blob{blob}); err != nil {
		s.logger.Warn("send realtime input failed", zap.Error(err))
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
	}
}

// Profile and history operations.

func (s *session) handleFetchProfiles() {
	files, err := appconfig.ScanProfiles(s.handler.config.RootDir, s.handler.config.ProfilesDir)
	if err != nil {
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	s.sendJSON(map[string]any{"type": "profile-files", "profiles": files})
}

func (s *session) handleProfileSwitch(ctx context.Context, filename string) {
	if filename == "" {
		return
	}
	profilePath := filepath.Join(s.handler.config.ProfilesDir, filepath.Base(filename))
	if filename == "conf.yaml" {
		profilePath = filepath.Join(s.handler.config.RootDir, "conf.yaml")
	}
	profile, err := appconfig.ReadProfileConfig(profilePath)
	if err != nil {
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	s.mu.Lock()
	s.profileName = profile.ProfileName
	s.profileUID = profile.ProfileUID
	if s.profileUID == "" {
		s.profileUID = "default"
	}
	s.voice = profile.Voice
	if s.voice == "" {
		s.voice = s.handler.config.GeminiVoice
	}
	s.systemPrompt = profile.SystemPrompt
	if s.systemPrompt == "" {
		s.systemPrompt = s.handler.config.GeminiSystemPrompt
	}
	s.historyUID = ""
	s.mu.Unlock()

	s.live.Disconnect()
	s.endConversation()
	s.connectUpstream(ctx)

	s.sendProfileInfo()
	s.sendJSON(map[string]any{"type": "profile-switched"})
}

func (s *session) handleHistoryList() {
	histories := storage.GetHistoryList(s.handler.config.ChatHistoryDir, s.currentProfileUID())
	s.sendJSON(map[string]any{"type": "history-list", "histories": histories})
}

func (s *session) handleFetchHistory(historyUID string) {
	if historyUID == "" {
		return
	}
	messages, err := storage.GetHistory(s.handler.config.ChatHistoryDir, s.currentProfileUID(), historyUID)
	if err != nil {
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	s.setHistoryUID(historyUID)
	s.sendJSON(map[string]any{"type": "history-data", "messages": messages})
}

func (s *session) handleCreateHistory() {
	historyUID, err := storage.CreateHistory(s.handler.config.ChatHistoryDir, s.currentProfileUID())
	if err != nil {
		s.sendJSON(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	s.setHistoryUID(historyUID)
	s.sendJSON(map[string]any{"type": "new-history-created", "history_uid": historyUID})
}

func (s *session) handleDeleteHistory(historyUID string) {
	if historyUID == "" {
		return
	}
	success := storage.DeleteHistory(s.handler.config.ChatHistoryDir, s.currentProfileUID(), historyUID)
	s.sendJSON(map[string]any{"type": "history-deleted", "success": success, "history_uid": historyUID})
	if success {
		s.mu.Lock()
		if s.historyUID == historyUID {
			s.historyUID = ""
		}
		s.mu.Unlock()
	}
}

// appendHistory snapshots the history target under the session lock; it is
// called from both the frontend dispatch goroutine and live event callbacks.
func (s *session) appendHistory(role string, content string) {
	s.mu.Lock()
	historyUID := s.historyUID
	profileUID := s.profileUID
	profileName := s.profileName
	s.mu.Unlock()
	if historyUID == "" {
		return
	}
	msg := storage.HistoryMessage{Role: role, Content: content, Name: profileName}
	if err := storage.AppendHistory(s.handler.config.ChatHistoryDir, profileUID, historyUID, msg); err != nil {
		s.logger.Warn("append history failed",
			zap.String("history_uid", historyUID),
			zap.Error(err),
		)
	}
}

func (s *session) currentProfileUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileUID
}

func (s *session) setHistoryUID(historyUID string) {
	s.mu.Lock()
	s.historyUID = historyUID
	s.mu.Unlock()
}

// Conversation bookkeeping.

func (s *session) ensureConversation() {
	s.mu.Lock()
	s.ensureConversationLocked()
	s.mu.Unlock()
}

func (s *session) ensureConversationLocked() {
	if s.inConversation {
		return
	}
	s.inConversation = true
	s.modelText = ""
	s.outBuffer = nil
	s.sendJSON(map[string]any{"type": "control", "text": "conversation-chain-start"})
}

func (s *session) endConversation() {
	s.mu.Lock()
	s.endConversationLocked()
	s.mu.Unlock()
}

func (s *session) endConversationLocked() {
	if !s.inConversation {
		return
	}
	s.inConversation = false
	s.modelText = ""
	s.outBuffer = nil
	s.sendJSON(map[string]any{"type": "control", "text": "conversation-chain-end"})
}

func (s *session) sendProfileInfo() {
	s.mu.Lock()
	payload := map[string]any{
		"type":         "set-profile",
		"profile_name": s.profileName,
		"profile_uid":  s.profileUID,
		"client_uid":   s.clientUID,
	}
	s.mu.Unlock()
	s.sendJSON(payload)
}

func (s *session) sendJSON(payload any) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.conn.WriteJSON(payload); err != nil {
		s.logger.Debug("ws send failed", zap.Error(err))
	}
}

func normalizeAudioFormat(format string) string {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "opus":
		return "opus"
	case "pcm", "pcm16", "":
		return "pcm16"
	default:
		return "pcm16"
	}
}
