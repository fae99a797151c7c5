package audio

import "testing"

func TestInt16BytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345, -12345}

	data := Int16SliceToBytesInto(nil, samples)
	if got := len(data); got != len(samples)*2 {
		t.Fatalf("bytes=%d, want %d", got, len(samples)*2)
	}

	back := BytesToInt16Slice(data)
	if len(back) != len(samples) {
		t.Fatalf("samples=%d, want %d", len(back), len(samples))
	}
	for i, sample := range samples {
		if back[i] != sample {
			t.Fatalf("sample[%d]=%d, want %d", i, back[i], sample)
		}
	}
}

func TestBytesToInt16PadsOddTrailingByte(t *testing.T) {
	got := BytesToInt16Slice([]byte{0x34, 0x12, 0x7F})
	if len(got) != 2 {
		t.Fatalf("samples=%d, want 2", len(got))
	}
	if got[0] != 0x1234 {
		t.Fatalf("sample[0]=%#x, want 0x1234", got[0])
	}
	if got[1] != 0x007F {
		t.Fatalf("sample[1]=%#x, want 0x007f", got[1])
	}
}

func TestFloat32ToInt16Clips(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{in: 2.0, want: 32767},
		{in: -2.0, want: -32768},
		{in: 0, want: 0},
		{in: 1.0, want: 32767},
		{in: -1.0, want: -32767},
	}
	for _, tt := range tests {
		if got := float32ToInt16(tt.in); got != tt.want {
			t.Fatalf("float32ToInt16(%v)=%d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDownmixToMono(t *testing.T) {
	stereo := []int16{100, 200, -100, 100, 0, 0}
	mono := DownmixToMono(stereo, 2)
	if len(mono) != 3 {
		t.Fatalf("frames=%d, want 3", len(mono))
	}
	if mono[0] != 150 || mono[1] != 0 || mono[2] != 0 {
		t.Fatalf("mono=%v, want [150 0 0]", mono)
	}
}

func TestDownmixToMonoPassthrough(t *testing.T) {
	samples := []int16{1, 2, 3}
	if got := DownmixToMono(samples, 1); &got[0] != &samples[0] {
		t.Fatal("mono input should be returned unchanged")
	}
}
