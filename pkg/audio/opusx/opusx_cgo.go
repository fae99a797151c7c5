//go:build cgo

package opusx

import "github.com/hraban/opus"

// Backend names the active opus implementation.
func Backend() string {
	return "cgo-hraban/opus"
}

type Application = opus.Application

const (
	AppVoIP  = opus.AppVoIP
	AppAudio = opus.AppAudio
)

// Encoder wraps the libopus encoder.
type Encoder struct {
	enc        opus.Encoder
	sampleRate int
	channels   int
	app        Application
}

func NewEncoder(sampleRate, channels int, app Application) (*Encoder, error) {
	e := &Encoder{sampleRate: sampleRate, channels: channels, app: app}
	if err := e.enc.Init(sampleRate, channels, app); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Encoder) Encode(pcm []int16, data []byte) (int, error) {
	return e.enc.Encode(pcm, data)
}

func (e *Encoder) Reset() error {
	return e.enc.Init(e.sampleRate, e.channels, e.app)
}

func (e *Encoder) SetBitrate(bitrate int) error {
	return e.enc.SetBitrate(bitrate)
}
