package genlive

import (
	"encoding/json"
	"testing"
)

func TestClientContentRoundTrip(t *testing.T) {
	turnComplete := false
	msg := newClientContentMessage(ClientContentInput{
		Parts:        []Part{{Text: "first"}, {Text: "second"}},
		TurnComplete: &turnComplete,
	})

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded clientContentMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if got := len(decoded.ClientContent.Turns); got != 1 {
		t.Fatalf("turns=%d, want 1", got)
	}
	turn := decoded.ClientContent.Turns[0]
	if turn.Role != "user" {
		t.Fatalf("role=%q, want %q", turn.Role, "user")
	}
	if len(turn.Parts) != 2 || turn.Parts[0].Text != "first" || turn.Parts[1].Text != "second" {
		t.Fatalf("parts=%+v, want the two original text parts", turn.Parts)
	}
	if decoded.ClientContent.TurnComplete {
		t.Fatal("turnComplete=true, want false")
	}
}

func TestClientContentTurnCompleteDefaultsTrue(t *testing.T) {
	msg := newClientContentMessage(ClientContentInput{Parts: []Part{{Text: "hi"}}})
	if !msg.ClientContent.TurnComplete {
		t.Fatal("turnComplete=false, want true by default")
	}
}

func TestClientContentNormalizesSinglePart(t *testing.T) {
	msg := newClientContentMessage(ClientContentInput{Parts: []Part{{Text: "only"}}})
	if got := len(msg.ClientContent.Turns[0].Parts); got != 1 {
		t.Fatalf("parts=%d, want 1", got)
	}
}

func TestIsAudioPart(t *testing.T) {
	tests := []struct {
		name string
		part Part
		want bool
	}{
		{name: "pcm with rate", part: Part{InlineData: &Blob{MIMEType: "audio/pcm;rate=24000"}}, want: true},
		{name: "bare pcm", part: Part{InlineData: &Blob{MIMEType: "audio/pcm"}}, want: true},
		{name: "image", part: Part{InlineData: &Blob{MIMEType: "image/png"}}, want: false},
		{name: "text part", part: Part{Text: "hello"}, want: false},
	}
	for _, tt := range tests {
		if got := isAudioPart(tt.part); got != tt.want {
			t.Fatalf("%s: isAudioPart=%v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestServerMessageUnionDecoding(t *testing.T) {
	var msg serverMessage
	if err := json.Unmarshal([]byte(`{"setupComplete":{}}`), &msg); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if msg.SetupComplete == nil {
		t.Fatal("setupComplete=nil, want marker present")
	}
	if msg.ToolCall != nil || msg.ServerContent != nil || msg.ToolCallCancellation != nil {
		t.Fatal("unexpected extra branches decoded")
	}
}
