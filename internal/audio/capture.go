package audio

import (
	"sync"

	"go.uber.org/zap"
)

// Capture reads microphone chunks and forwards them as PCM16 bytes while the
// gate is open. Gated-off chunks are read and discarded so the device buffer
// never backs up.
type Capture struct {
	gate func() bool
	sink func(pcm []byte)
	log  *zap.Logger

	chunks chan []int16
	stream Stream

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

// NewCapture opens a capture stream on the device. gate is polled per chunk;
// sink receives encoded chunks only while gate returns true.
func NewCapture(dev Device, gate func() bool, sink func(pcm []byte), log *zap.Logger) (*Capture, error) {
	c := &Capture{
		gate:   gate,
		sink:   sink,
		log:    log,
		chunks: make(chan []int16, 16),
	}
	stream, err := dev.OpenCapture(c.onChunk)
	if err != nil {
		return nil, err
	}
	c.stream = stream
	return c, nil
}

func (c *Capture) onChunk(in []int16) {
	select {
	case c.chunks <- in:
	default:
		// Pump is behind; losing a 20ms chunk beats blocking the reader.
	}
}

// Start begins capturing.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if err := c.stream.Start(); err != nil {
		return err
	}
	c.started = true
	c.done = make(chan struct{})
	go c.pump(c.done)
	return nil
}

func (c *Capture) pump(done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case chunk := <-c.chunks:
			if !c.gate() {
				continue
			}
			c.sink(EncodePCM16(chunk))
		}
	}
}

// Close stops capturing and releases the stream.
func (c *Capture) Close() error {
	c.mu.Lock()
	if c.started {
		c.started = false
		close(c.done)
	}
	c.mu.Unlock()
	return c.stream.Close()
}
