// Package audio handles PCM16 capture and playback at the fixed format the
// realtime voice channel uses: 24 kHz, mono, 16-bit little-endian.
package audio

import "encoding/binary"

const (
	SampleRate = 24000
	Channels   = 1

	// PlaybackFrames is the callback block for output streams, 50ms.
	PlaybackFrames = SampleRate * 50 / 1000

	// CaptureFrames is the chunk size read from the microphone, 20ms.
	CaptureFrames = SampleRate * 20 / 1000

	BytesPerSample = 2
)

// EncodePCM16 serializes samples as little-endian PCM16 bytes.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// DecodePCM16 parses little-endian PCM16 bytes. A trailing odd byte is
// dropped.
func DecodePCM16(data []byte) []int16 {
	n := len(data) / BytesPerSample
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}
