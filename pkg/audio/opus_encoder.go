package audio

import (
	"fmt"
	"sync"

	"github.com/auralis-ai/live-bridge/pkg/audio/opusx"
)

const opusMaxPacketBytes = 4000

// OpusEncoder produces fixed-duration opus frames from PCM16 bytes.
type OpusEncoder struct {
	encoder       *opusx.Encoder
	sampleRate    int
	channels      int
	frameDuration int
	frameSize     int
	opusBuffer    []byte
	scratch       []int16
	mutex         sync.Mutex
}

// NewOpusEncoder executes the newOpusEncoder function.
func NewOpusEncoder(sampleRate, channels, frameDurationMs int) (*OpusEncoder, error) {
	enc, err := opusx.NewEncoder(sampleRate, channels, opusx.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	return &OpusEncoder{
		encoder:       enc,
		sampleRate:    sampleRate,
		channels:      channels,
		frameDuration: frameDurationMs,
		frameSize:     sampleRate * frameDurationMs / 1000,
		opusBuffer:    make([]byte, opusMaxPacketBytes),
	}, nil
}

// Encode encodes exactly one frame worth of PCM16 bytes. Short input is
// zero-padded, long input truncated.
func (e *OpusEncoder) Encode(pcmData []byte) ([]byte, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	expectedSamples := e.frameSize * e.channels
	samples := BytesToInt16SliceInto(e.scratch, pcmData)
	e.scratch = samples

	if len(samples) < expectedSamples {
		if cap(samples) < expectedSamples {
			tmp := make([]int16, expectedSamples)
			copy(tmp, samples)
			samples = tmp
			e.scratch = samples
		} else {
			origLen := len(samples)
			samples = samples[:expectedSamples]
			for i := origLen; i < expectedSamples; i++ {
				samples[i] = 0
			}
		}
	} else if len(samples) > expectedSamples {
		samples = samples[:expectedSamples]
	}

	n, err := e.encoder.Encode(samples, e.opusBuffer)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	copy(out, e.opusBuffer[:n])
	return out, nil
}

// SetBitrate executes the setBitrate method.
func (e *OpusEncoder) SetBitrate(bitrate int) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.encoder.SetBitrate(bitrate)
}

// Close resets the underlying encoder state.
func (e *OpusEncoder) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.encoder != nil {
		_ = e.encoder.Reset()
	}
	return nil
}

// FrameSize returns samples per channel per frame.
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// FrameBytes returns the PCM16 byte count of one frame.
func (e *OpusEncoder) FrameBytes() int {
	return e.frameSize * e.channels * 2
}

// FrameDuration returns the frame duration in milliseconds.
func (e *OpusEncoder) FrameDuration() int {
	return e.frameDuration
}
