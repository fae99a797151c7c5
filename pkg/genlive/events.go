package genlive

import (
	"sync"
	"time"
)

// Emitter is a typed multi-subscriber dispatch registry: one ordered callback
// list per event channel. Emission runs in subscription order on the emitting
// goroutine; events with zero subscribers are dropped.
type Emitter struct {
	mu sync.Mutex

	open          []func()
	closed        []func(reason string)
	logs          []func(entry StreamingLogEntry)
	audio         []func(pcm []byte)
	content       []func(envelope ContentEvent)
	interrupted   []func()
	setupComplete []func()
	turnComplete  []func()
	toolCall      []func(call ToolCall)
	toolCancel    []func(cancel ToolCallCancellation)
}

// OnOpen subscribes to the open channel.
func (e *Emitter) OnOpen(fn func()) {
	e.mu.Lock()
	e.open = append(e.open, fn)
	e.mu.Unlock()
}

// OnClose subscribes to the close channel. The reason is the transport close
// text when available.
func (e *Emitter) OnClose(fn func(reason string)) {
	e.mu.Lock()
	e.closed = append(e.closed, fn)
	e.mu.Unlock()
}

// OnLog subscribes to diagnostic log entries.
func (e *Emitter) OnLog(fn func(entry StreamingLogEntry)) {
	e.mu.Lock()
	e.logs = append(e.logs, fn)
	e.mu.Unlock()
}

// OnAudio subscribes to decoded PCM buffers, one per inline audio part.
func (e *Emitter) OnAudio(fn func(pcm []byte)) {
	e.mu.Lock()
	e.audio = append(e.audio, fn)
	e.mu.Unlock()
}

// OnContent subscribes to consolidated model-turn content events.
func (e *Emitter) OnContent(fn func(envelope ContentEvent)) {
	e.mu.Lock()
	e.content = append(e.content, fn)
	e.mu.Unlock()
}

// OnInterrupted subscribes to generation interruptions.
func (e *Emitter) OnInterrupted(fn func()) {
	e.mu.Lock()
	e.interrupted = append(e.interrupted, fn)
	e.mu.Unlock()
}

// OnSetupComplete subscribes to the setup handshake acknowledgement.
func (e *Emitter) OnSetupComplete(fn func()) {
	e.mu.Lock()
	e.setupComplete = append(e.setupComplete, fn)
	e.mu.Unlock()
}

// OnTurnComplete subscribes to model turn completion.
func (e *Emitter) OnTurnComplete(fn func()) {
	e.mu.Lock()
	e.turnComplete = append(e.turnComplete, fn)
	e.mu.Unlock()
}

// OnToolCall subscribes to server tool calls.
func (e *Emitter) OnToolCall(fn func(call ToolCall)) {
	e.mu.Lock()
	e.toolCall = append(e.toolCall, fn)
	e.mu.Unlock()
}

// OnToolCallCancellation subscribes to tool call cancellations.
func (e *Emitter) OnToolCallCancellation(fn func(cancel ToolCallCancellation)) {
	e.mu.Lock()
	e.toolCancel = append(e.toolCancel, fn)
	e.mu.Unlock()
}

func (e *Emitter) emitOpen() {
	e.mu.Lock()
	subs := append([]func(){}, e.open...)
	e.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (e *Emitter) emitClose(reason string) {
	e.mu.Lock()
	subs := append([]func(string){}, e.closed...)
	e.mu.Unlock()
	for _, fn := range subs {
		fn(reason)
	}
}

func (e *Emitter) emitLog(entryType string, message any) {
	e.mu.Lock()
	subs := append([]func(StreamingLogEntry){}, e.logs...)
	e.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	entry := StreamingLogEntry{Time: time.Now(), Type: entryType, Message: message}
	for _, fn := range subs {
		fn(entry)
	}
}

func (e *Emitter) emitAudio(pcm []byte) {
	e.mu.Lock()
	subs := append([]func([]byte){}, e.audio...)
	e.mu.Unlock()
	for _, fn := range subs {
		fn(pcm)
	}
}

func (e *Emitter) emitContent(envelope ContentEvent) {
	e.mu.Lock()
	subs := append([]func(ContentEvent){}, e.content...)
	e.mu.Unlock()
	for _, fn := range subs {
		fn(envelope)
	}
}

func (e *Emitter) emitInterrupted() {
	e.mu.Lock()
	subs := append([]func(){}, e.interrupted...)
	e.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (e *Emitter) emitSetupComplete() {
	e.mu.Lock()
	subs := append([]func(){}, e.setupComplete...)
	e.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (e *Emitter) emitTurnComplete() {
	e.mu.Lock()
	subs := append([]func(){}, e.turnComplete...)
	e.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (e *Emitter) emitToolCall(call ToolCall) {
	e.mu.Lock()
	subs := append([]func(ToolCall){}, e.toolCall...)
	e.mu.Unlock()
	for _, fn := range subs {
		fn(call)
	}
}

func (e *Emitter) emitToolCallCancellation(cancel ToolCallCancellation) {
	e.mu.Lock()
	subs := append([]func(ToolCallCancellation){}, e.toolCancel...)
	e.mu.Unlock()
	for _, fn := range subs {
		fn(cancel)
	}
}
