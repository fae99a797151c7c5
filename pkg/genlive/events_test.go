package genlive

import "testing"

func TestEmitterSubscriptionOrder(t *testing.T) {
	var emitter Emitter
	order := []int{}
	emitter.OnOpen(func() { order = append(order, 1) })
	emitter.OnOpen(func() { order = append(order, 2) })
	emitter.OnOpen(func() { order = append(order, 3) })

	emitter.emitOpen()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("emission order=%v, want [1 2 3]", order)
	}
}

func TestEmitterZeroSubscribersDropsEvent(t *testing.T) {
	var emitter Emitter
	emitter.emitAudio([]byte{1, 2})
	emitter.emitClose("gone")
	emitter.emitLog("client.open", nil)
}

func TestEmitterLogEntryCarriesTypeAndMessage(t *testing.T) {
	var emitter Emitter
	var got StreamingLogEntry
	emitter.OnLog(func(entry StreamingLogEntry) { got = entry })

	emitter.emitLog("server.audio", 128)

	if got.Type != "server.audio" {
		t.Fatalf("type=%q, want %q", got.Type, "server.audio")
	}
	if got.Message != 128 {
		t.Fatalf("message=%v, want 128", got.Message)
	}
	if got.Time.IsZero() {
		t.Fatal("time is zero, want populated")
	}
}

func TestEmitterMultipleChannelsIndependent(t *testing.T) {
	var emitter Emitter
	opens, closes := 0, 0
	emitter.OnOpen(func() { opens++ })
	emitter.OnClose(func(string) { closes++ })

	emitter.emitOpen()
	emitter.emitOpen()
	emitter.emitClose("bye")

	if opens != 2 {
		t.Fatalf("opens=%d, want 2", opens)
	}
	if closes != 1 {
		t.Fatalf("closes=%d, want 1", closes)
	}
}
