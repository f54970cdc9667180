package audio

import (
	"bytes"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestEncodeDecodePCM16(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 12345}
	out := DecodePCM16(EncodePCM16(in))
	if len(out) != len(in) {
		t.Fatalf("got %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}

	// A trailing odd byte is dropped, not misparsed.
	if got := DecodePCM16([]byte{0x01, 0x02, 0x03}); len(got) != 1 {
		t.Fatalf("odd input decoded to %d samples, want 1", len(got))
	}
}

func TestPlayerFillSplitsAndPads(t *testing.T) {
	dev := &MemDevice{}
	p, err := NewPlayer(dev, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	defer p.Close()

	samples := make([]int16, 1800)
	for i := range samples {
		samples[i] = int16(i%100 + 1)
	}
	p.Write(EncodePCM16(samples))

	if !p.Playing() {
		t.Fatal("player should report playing after Write")
	}

	st := p.stream.(*memStream)

	// First block consumes part of the chunk.
	out := st.Pull(PlaybackFrames)
	if out[0] != 1 || out[PlaybackFrames-1] != samples[PlaybackFrames-1] {
		t.Fatal("first block does not match queued samples")
	}
	if got := p.Frames(); got != PlaybackFrames {
		t.Fatalf("frames = %d, want %d", got, PlaybackFrames)
	}

	// Second block drains the remainder and pads with silence.
	out = st.Pull(PlaybackFrames)
	rest := len(samples) - PlaybackFrames
	if out[rest-1] == 0 {
		t.Fatal("real tail sample missing from second block")
	}
	for i := rest; i < PlaybackFrames; i++ {
		if out[i] != 0 {
			t.Fatalf("padding at %d = %d, want silence", i, out[i])
		}
	}
	if got := p.Frames(); got != int64(len(samples)) {
		t.Fatalf("frames = %d, want %d (padding must not count)", got, len(samples))
	}
}

func TestPlayerStopDiscardsQueue(t *testing.T) {
	dev := &MemDevice{}
	p, err := NewPlayer(dev, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}
	defer p.Close()

	p.Write(EncodePCM16(make([]int16, 4800)))
	p.Stop()

	if p.Playing() {
		t.Fatal("player still playing after Stop")
	}
	out := p.stream.(*memStream).Pull(PlaybackFrames)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("sample %d = %d after Stop, want silence", i, s)
		}
	}
	if got := p.Frames(); got != 0 {
		t.Fatalf("frames = %d after Stop without playback, want 0", got)
	}

	p.ResetFrames()
	if got := p.Frames(); got != 0 {
		t.Fatalf("frames = %d after reset, want 0", got)
	}
}

func TestCaptureGating(t *testing.T) {
	var gate atomic.Bool
	sunk := make(chan []byte, 4)

	dev := &MemDevice{}
	c, err := NewCapture(dev, gate.Load, func(pcm []byte) { sunk <- pcm }, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	defer c.Close()
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	st := c.stream.(*memStream)

	// Gated-off chunks are discarded.
	blocked := make([]int16, CaptureFrames)
	blocked[0] = 111
	st.Push(blocked)

	gate.Store(true)
	passed := make([]int16, CaptureFrames)
	passed[0] = 222
	st.Push(passed)

	select {
	case pcm := <-sunk:
		got := DecodePCM16(pcm)
		if got[0] != 222 {
			t.Fatalf("sink got sample %d, want 222 (gated chunk leaked)", got[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received the gated-on chunk")
	}
	if len(sunk) != 0 {
		t.Fatal("sink received more chunks than expected")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768}
	blob := WAV(samples, SampleRate)

	got, rate, err := PCMFromWAV(blob)
	if err != nil {
		t.Fatalf("PCMFromWAV: %v", err)
	}
	if rate != SampleRate {
		t.Fatalf("rate = %d, want %d", rate, SampleRate)
	}
	if len(got) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestPCMFromWAVRejectsGarbage(t *testing.T) {
	if _, _, err := PCMFromWAV([]byte("definitely not audio")); err == nil {
		t.Fatal("expected error for non-RIFF input")
	}

	// Truncated data chunk.
	blob := WAV(make([]int16, 100), SampleRate)
	if _, _, err := PCMFromWAV(blob[:60]); err == nil {
		t.Fatal("expected error for truncated container")
	}

	if !bytes.Equal(blob[0:4], []byte("RIFF")) {
		t.Fatal("WAV header malformed")
	}
}
