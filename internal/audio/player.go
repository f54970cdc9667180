package audio

import (
	"sync"

	"go.uber.org/zap"
)

// Player queues PCM16 audio and feeds it to an output stream. The stream
// callback drains queued chunks, splitting them across blocks as needed, and
// pads with silence when the queue runs dry. Frames counts only real samples
// played, never padding, so callers can track playback progress.
type Player struct {
	log *zap.Logger

	mu      sync.Mutex
	queue   [][]int16
	playing bool
	frames  int64

	stream Stream
}

// NewPlayer opens a playback stream on the device. The stream starts lazily
// on the first Write.
func NewPlayer(dev Device, log *zap.Logger) (*Player, error) {
	p := &Player{log: log}
	stream, err := dev.OpenPlayback(p.fill)
	if err != nil {
		return nil, err
	}
	p.stream = stream
	return p, nil
}

func (p *Player) fill(out []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for n < len(out) && len(p.queue) > 0 {
		chunk := p.queue[0]
		c := copy(out[n:], chunk)
		n += c
		if c < len(chunk) {
			p.queue[0] = chunk[c:]
		} else {
			p.queue = p.queue[1:]
		}
	}
	p.frames += int64(n)
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
}

// Write queues PCM16 bytes for playback, starting the stream when idle.
func (p *Player) Write(data []byte) {
	samples := DecodePCM16(data)
	if len(samples) == 0 {
		return
	}

	p.mu.Lock()
	p.queue = append(p.queue, samples)
	start := !p.playing
	if start {
		p.playing = true
	}
	p.mu.Unlock()

	if start {
		if err := p.stream.Start(); err != nil {
			p.log.Warn("start playback stream", zap.Error(err))
			p.mu.Lock()
			p.playing = false
			p.mu.Unlock()
		}
	}
}

// Stop halts playback and discards everything queued.
func (p *Player) Stop() {
	p.mu.Lock()
	wasPlaying := p.playing
	p.playing = false
	p.queue = nil
	p.mu.Unlock()

	if wasPlaying {
		if err := p.stream.Stop(); err != nil {
			p.log.Warn("stop playback stream", zap.Error(err))
		}
	}
}

// Playing reports whether the stream has been started and not stopped since.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Frames returns the number of real samples played since the last reset.
func (p *Player) Frames() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// ResetFrames zeroes the played-sample counter.
func (p *Player) ResetFrames() {
	p.mu.Lock()
	p.frames = 0
	p.mu.Unlock()
}

// Close stops the player and releases the stream.
func (p *Player) Close() error {
	p.Stop()
	return p.stream.Close()
}
