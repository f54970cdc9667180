package audio

import (
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

// PortAudioDevice is the hardware Device backed by PortAudio.
type PortAudioDevice struct {
	log *zap.Logger
}

// OpenPortAudio initializes the PortAudio runtime. Callers that cannot open
// it (headless machines, CI) should fall back to a MemDevice.
func OpenPortAudio(log *zap.Logger) (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	return &PortAudioDevice{log: log}, nil
}

// OpenPlayback opens the default output device. PortAudio drives the
// callback directly.
func (d *PortAudioDevice) OpenPlayback(cb func(out []int16)) (Stream, error) {
	stream, err := portaudio.OpenDefaultStream(0, Channels, float64(SampleRate), PlaybackFrames,
		func(out []int16) { cb(out) })
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// OpenCapture opens the default input device and pumps fixed 20ms chunks to
// the callback from a reader goroutine.
func (d *PortAudioDevice) OpenCapture(cb func(in []int16)) (Stream, error) {
	c := &paCapture{
		cb:  cb,
		buf: make([]int16, CaptureFrames),
		log: d.log,
	}
	stream, err := portaudio.OpenDefaultStream(Channels, 0, float64(SampleRate), CaptureFrames, c.buf)
	if err != nil {
		return nil, err
	}
	c.stream = stream
	return c, nil
}

func (d *PortAudioDevice) Close() error {
	return portaudio.Terminate()
}

type paCapture struct {
	cb  func([]int16)
	buf []int16
	log *zap.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
	done    chan struct{}
}

func (c *paCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	if err := c.stream.Start(); err != nil {
		return err
	}
	c.running = true
	c.done = make(chan struct{})
	go c.readLoop(c.done)
	return nil
}

func (c *paCapture) readLoop(done chan struct{}) {
	defer close(done)
	for {
		c.mu.Lock()
		running := c.running
		c.mu.Unlock()
		if !running {
			return
		}

		available, err := c.stream.AvailableToRead()
		if err != nil || available < len(c.buf) {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err := c.stream.Read(); err != nil {
			if c.log != nil {
				c.log.Debug("mic read failed", zap.Error(err))
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		chunk := make([]int16, len(c.buf))
		copy(chunk, c.buf)
		c.cb(chunk)
	}
}

func (c *paCapture) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	done := c.done
	c.done = nil
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}
	return c.stream.Stop()
}

func (c *paCapture) Close() error {
	if err := c.Stop(); err != nil {
		return err
	}
	return c.stream.Close()
}
