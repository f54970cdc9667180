package audio

import (
	"sync"
	"time"
)

// Stream is a started or stopped audio stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Device opens playback and capture streams. Callbacks receive slices they
// own; implementations copy hardware buffers before handing them over.
type Device interface {
	// OpenPlayback opens an output stream. The callback must fill the whole
	// slice on every invocation.
	OpenPlayback(cb func(out []int16)) (Stream, error)

	// OpenCapture opens an input stream delivering CaptureFrames samples per
	// callback.
	OpenCapture(cb func(in []int16)) (Stream, error)

	Close() error
}

// MemDevice is an in-memory Device for tests and for running without sound
// hardware. Playback output is discarded; with AutoDrain set, a background
// ticker keeps pulling frames at roughly realtime speed so queued audio
// still drains.
type MemDevice struct {
	// AutoDrain drains started playback streams on a wall-clock ticker.
	AutoDrain bool
}

func (d *MemDevice) OpenPlayback(cb func(out []int16)) (Stream, error) {
	return &memStream{cb: cb, frames: PlaybackFrames, drain: d.AutoDrain}, nil
}

func (d *MemDevice) OpenCapture(cb func(in []int16)) (Stream, error) {
	return &memStream{cb: cb, frames: CaptureFrames}, nil
}

func (d *MemDevice) Close() error { return nil }

type memStream struct {
	cb     func([]int16)
	frames int
	drain  bool

	mu      sync.Mutex
	started bool
	stop    chan struct{}
}

func (s *memStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	if s.drain {
		s.stop = make(chan struct{})
		go s.drainLoop(s.stop)
	}
	return nil
}

func (s *memStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	return nil
}

func (s *memStream) Close() error {
	return s.Stop()
}

func (s *memStream) drainLoop(stop chan struct{}) {
	interval := time.Duration(s.frames) * time.Second / SampleRate
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			s.cb(make([]int16, s.frames))
		}
	}
}

// Pull invokes the stream callback once with a buffer of n samples and
// returns it. Tests use this to step playback deterministically.
func (s *memStream) Pull(n int) []int16 {
	buf := make([]int16, n)
	s.cb(buf)
	return buf
}

// Push feeds samples through the stream callback, as a capture device would.
func (s *memStream) Push(samples []int16) {
	s.cb(samples)
}
