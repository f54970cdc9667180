package audio

import (
	"encoding/binary"
	"fmt"
)

// WAV wraps PCM16 samples in a minimal RIFF/WAVE container. Speech-to-text
// servers want a real file format, not bare samples.
func WAV(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * BytesPerSample
	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:], uint16(Channels))
	binary.LittleEndian.PutUint32(buf[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(sampleRate*Channels*BytesPerSample))
	binary.LittleEndian.PutUint16(buf[32:], uint16(Channels*BytesPerSample))
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))
	copy(buf[44:], EncodePCM16(samples))
	return buf
}

// PCMFromWAV extracts mono PCM16 samples and the sample rate from a
// RIFF/WAVE container.
func PCMFromWAV(data []byte) ([]int16, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("audio: not a RIFF/WAVE container")
	}

	var (
		sampleRate int
		gotFmt     bool
		pcm        []byte
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, 0, fmt.Errorf("audio: truncated %q chunk", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("audio: fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(data[body:])
			channels := binary.LittleEndian.Uint16(data[body+2:])
			rate := binary.LittleEndian.Uint32(data[body+4:])
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if format != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("audio: want PCM16, got format %d with %d bits", format, bits)
			}
			if channels != Channels {
				return nil, 0, fmt.Errorf("audio: want mono, got %d channels", channels)
			}
			sampleRate = int(rate)
			gotFmt = true
		case "data":
			pcm = data[body : body+size]
		}
		off = body + size
		if size%2 == 1 {
			off++ // chunks are word aligned
		}
	}

	if !gotFmt {
		return nil, 0, fmt.Errorf("audio: missing fmt chunk")
	}
	if pcm == nil {
		return nil, 0, fmt.Errorf("audio: missing data chunk")
	}
	return DecodePCM16(pcm), sampleRate, nil
}
