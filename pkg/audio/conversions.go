package audio

import "math"

func float32ToInt16(sample float32) int16 {
	if sample > 1.0 {
		return math.MaxInt16
	}
	if sample < -1.0 {
		return math.MinInt16
	}
	return int16(sample * math.MaxInt16)
}

// Float32SliceToInt16SliceInto fills dst with float32 converted to int16 and returns the slice.
func Float32SliceToInt16SliceInto(dst []int16, samples []float32) []int16 {
	if cap(dst) < len(samples) {
		dst = make([]int16, len(samples))
	} else {
		dst = dst[:len(samples)]
	}
	for i, sample := range samples {
		dst[i] = float32ToInt16(sample)
	}
	return dst
}

// Int16SliceToFloat32Into fills dst with int16 converted to float32 and returns the slice.
func Int16SliceToFloat32Into(dst []float32, samples []int16) []float32 {
	if cap(dst) < len(samples) {
		dst = make([]float32, len(samples))
	} else {
		dst = dst[:len(samples)]
	}
	for i, sample := range samples {
		dst[i] = float32(sample) / float32(math.MaxInt16)
	}
	return dst
}

// Int16SliceToBytesInto converts int16 samples to little-endian bytes.
func Int16SliceToBytesInto(dst []byte, samples []int16) []byte {
	needed := len(samples) * 2
	if cap(dst) < needed {
		dst = make([]byte, needed)
	} else {
		dst = dst[:needed]
	}
	for i, sample := range samples {
		offset := i * 2
		dst[offset] = byte(sample)
		dst[offset+1] = byte(sample >> 8)
	}
	return dst
}

// BytesToInt16SliceInto fills dst with little-endian int16 samples and returns it.
// An odd trailing byte is zero-padded.
func BytesToInt16SliceInto(dst []int16, data []byte) []int16 {
	needed := (len(data) + 1) / 2
	if cap(dst) < needed {
		dst = make([]int16, needed)
	} else {
		dst = dst[:needed]
	}
	for i := 0; i < needed; i++ {
		low := data[i*2]
		high := byte(0)
		if i*2+1 < len(data) {
			high = data[i*2+1]
		}
		dst[i] = int16(low) | int16(high)<<8
	}
	return dst
}

// BytesToInt16Slice converts little-endian PCM16 bytes to a fresh sample slice.
func BytesToInt16Slice(data []byte) []int16 {
	return BytesToInt16SliceInto(nil, data)
}

// DownmixToMono averages interleaved channels into a mono sample slice.
// Mono input is returned unchanged.
func DownmixToMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += int(samples[i*channels+ch])
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}
