package ws

import (
	"testing"

	"go.uber.org/zap"

	appconfig "github.com/auralis-ai/live-bridge/internal/config"
	"github.com/auralis-ai/live-bridge/internal/storage"
)

func TestNormalizeAudioFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "opus", want: "opus"},
		{in: " OPUS ", want: "opus"},
		{in: "pcm", want: "pcm16"},
		{in: "pcm16", want: "pcm16"},
		{in: "", want: "pcm16"},
		{in: "mp3", want: "pcm16"},
	}
	for _, tt := range tests {
		if got := normalizeAudioFormat(tt.in); got != tt.want {
			t.Fatalf("normalizeAudioFormat(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAppendHistoryConcurrentWithHistorySwitch(t *testing.T) {
	baseDir := t.TempDir()
	uid, err := storage.CreateHistory(baseDir, "default")
	if err != nil {
		t.Fatalf("CreateHistory error: %v", err)
	}

	sess := &session{
		logger:     zap.NewNop(),
		handler:    &Handler{config: appconfig.Config{ChatHistoryDir: baseDir}},
		profileUID: "default",
	}
	sess.setHistoryUID(uid)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			sess.appendHistory("model", "turn text")
		}
	}()
	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			sess.setHistoryUID("")
		} else {
			sess.setHistoryUID(uid)
		}
	}
	<-done

	messages, err := storage.GetHistory(baseDir, "default", uid)
	if err != nil {
		t.Fatalf("GetHistory error: %v", err)
	}
	for i, msg := range messages {
		if msg.Role != "model" || msg.Content != "turn text" {
			t.Fatalf("messages[%d]=%+v, want model turn", i, msg)
		}
	}
}

func TestAppendHistoryWithoutActiveHistoryIsNoop(t *testing.T) {
	baseDir := t.TempDir()
	sess := &session{
		logger:     zap.NewNop(),
		handler:    &Handler{config: appconfig.Config{ChatHistoryDir: baseDir}},
		profileUID: "default",
	}

	sess.appendHistory("model", "dropped")

	if list := storage.GetHistoryList(baseDir, "default"); len(list) != 0 {
		t.Fatalf("histories=%d, want 0", len(list))
	}
}
