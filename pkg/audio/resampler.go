package audio

import (
	"errors"
	"sync"

	resampler "github.com/godeps/go-audio-soxr"
)

type soxrKey struct {
	inRate  int
	outRate int
	quality resampler.QualityPreset
}

var soxrPools sync.Map

func getSoxrPool(key soxrKey) *sync.Pool {
	if pool, ok := soxrPools.Load(key); ok {
		return pool.(*sync.Pool)
	}
	pool := &sync.Pool{}
	actual, _ := soxrPools.LoadOrStore(key, pool)
	return actual.(*sync.Pool)
}

func acquireSoxr(key soxrKey) (*resampler.SimpleResamplerFloat32, error) {
	pool := getSoxrPool(key)
	if v := pool.Get(); v != nil {
		if r, ok := v.(*resampler.SimpleResamplerFloat32); ok && r != nil {
			return r, nil
		}
	}
	return resampler.NewEngineFloat32(float64(key.inRate), float64(key.outRate), key.quality)
}

func releaseSoxr(key soxrKey, r *resampler.SimpleResamplerFloat32) {
	if r == nil {
		return
	}
	r.Reset()
	getSoxrPool(key).Put(r)
}

// StreamResampler keeps soxr resampling state across PCM16 frames. It is not
// safe for concurrent use; each session owns its own instance.
type StreamResampler struct {
	key    soxrKey
	engine *resampler.SimpleResamplerFloat32
	outBuf []float32
}

// NewStreamResampler creates a streaming resampler for continuous audio.
func NewStreamResampler(inRate, outRate int) (*StreamResampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, errors.New("invalid resampler rates")
	}
	key := soxrKey{inRate: inRate, outRate: outRate, quality: resampler.QualityHigh}
	engine, err := acquireSoxr(key)
	if err != nil {
		return nil, err
	}
	return &StreamResampler{key: key, engine: engine}, nil
}

// Close returns the underlying engine to the pool.
func (s *StreamResampler) Close() {
	if s == nil || s.engine == nil {
		return
	}
	releaseSoxr(s.key, s.engine)
	s.engine = nil
	s.outBuf = nil
}

// AppendPCM appends PCM16 samples for resampling.
func (s *StreamResampler) AppendPCM(pcm []int16) error {
	if s == nil || s.engine == nil || len(pcm) == 0 {
		return nil
	}
	tmp := AcquireFloat32(len(pcm))
	tmp = Int16SliceToFloat32Into(tmp, pcm)
	out, err := s.engine.Process(tmp)
	ReleaseFloat32(tmp)
	if err != nil {
		return err
	}
	if len(out) > 0 {
		s.outBuf = append(s.outBuf, out...)
	}
	return nil
}

// Flush drains any samples still buffered inside the engine.
func (s *StreamResampler) Flush() error {
	if s == nil || s.engine == nil {
		return nil
	}
	out, err := s.engine.Flush()
	if err != nil {
		return err
	}
	if len(out) > 0 {
		s.outBuf = append(s.outBuf, out...)
	}
	return nil
}

// Pending reports how many resampled samples are buffered.
func (s *StreamResampler) Pending() int {
	if s == nil {
		return 0
	}
	return len(s.outBuf)
}

// PopAll returns every buffered resampled sample as PCM16 and clears the buffer.
func (s *StreamResampler) PopAll() []int16 {
	if s == nil || len(s.outBuf) == 0 {
		return nil
	}
	out := AcquireInt16(len(s.outBuf))
	out = Float32SliceToInt16SliceInto(out, s.outBuf)
	s.outBuf = s.outBuf[:0]
	return out
}

// PopFrame returns a fixed-size PCM16 frame if enough samples are buffered.
func (s *StreamResampler) PopFrame(frameSize int) ([]int16, bool) {
	if s == nil || frameSize <= 0 || len(s.outBuf) < frameSize {
		return nil, false
	}
	frame := AcquireInt16(frameSize)
	frame = Float32SliceToInt16SliceInto(frame, s.outBuf[:frameSize])
	s.outBuf = s.outBuf[frameSize:]
	return frame, true
}
