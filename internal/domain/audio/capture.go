package audio

import (
	"context"
	"errors"
	"sync/atomic"

	"voicehold/internal/platform/logging"
)

// ErrMicPermissionDenied is returned when the OS has denied microphone
// access. The adapter goes inactive; an external poller restarts capture
// once permission appears.
var ErrMicPermissionDenied = errors.New("microphone access denied")

// ErrDeviceUnavailable is returned when no capture device can be opened for
// a reason other than permissions.
var ErrDeviceUnavailable = errors.New("audio capture device unavailable")

// Backend abstracts the hardware capture implementation. The real device
// tap lives outside this module; tests and the headless default inject
// their own. Frames delivers canonical float32 chunks; the backend owns the
// channel and closes it on Stop.
type Backend interface {
	Open() error
	Start() error
	Stop() error
	Close() error
	Frames() <-chan []float32
}

// Capture pumps frames from a backend into the ring buffer. It is the only
// writer of the ring; the orchestrator is the only drainer.
type Capture struct {
	backend   Backend
	ring      *RingBuffer
	logger    *logging.Logger
	recording atomic.Bool
	pumpDone  chan struct{}
}

// NewCapture wires a backend to the shared ring buffer.
func NewCapture(backend Backend, ring *RingBuffer, logger *logging.Logger) *Capture {
	return &Capture{backend: backend, ring: ring, logger: logger}
}

// StartRecording opens the device and begins pumping frames into the ring.
// Idempotent: calling while already recording is a no-op. The pump
// goroutine exits when ctx is cancelled or the backend closes its channel.
func (c *Capture) StartRecording(ctx context.Context) error {
	if !c.recording.CompareAndSwap(false, true) {
		return nil
	}

	if err := c.backend.Open(); err != nil {
		c.recording.Store(false)
		if errors.Is(err, ErrMicPermissionDenied) {
			return ErrMicPermissionDenied
		}
		return errors.Join(ErrDeviceUnavailable, err)
	}
	if err := c.backend.Start(); err != nil {
		_ = c.backend.Close()
		c.recording.Store(false)
		return errors.Join(ErrDeviceUnavailable, err)
	}

	c.logger.InfoTag("AUDIO", "recording started @ %dHz", CanonicalSampleRate)

	frames := c.backend.Frames()
	done := make(chan struct{})
	c.pumpDone = done
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				c.ring.Write(frame)
			}
		}
	}()

	return nil
}

// StopRecording halts capture and returns the sealed sample sequence. The
// returned slice is a copy owned by the caller; the ring is reset.
func (c *Capture) StopRecording() ([]float32, error) {
	if !c.recording.CompareAndSwap(true, false) {
		return nil, nil
	}

	if err := c.backend.Stop(); err != nil {
		return nil, err
	}
	// Stop closed the frame channel; wait for the pump to flush whatever
	// was still buffered so the tail lands in this seal, not the next one.
	if c.pumpDone != nil {
		<-c.pumpDone
		c.pumpDone = nil
	}
	if err := c.backend.Close(); err != nil {
		c.logger.WarnTag("AUDIO", "close after stop: %v", err)
	}

	pcm := c.ring.Drain()
	c.logger.InfoTag("AUDIO", "recording stopped, captured %d samples (%.2fs)", len(pcm), Duration(pcm))
	return pcm, nil
}

// IsRecording reports whether capture is currently active.
func (c *Capture) IsRecording() bool {
	return c.recording.Load()
}

// NullBackend is a silent capture backend used when the daemon runs without
// a hardware tap (headless tests, CI). It produces no frames.
type NullBackend struct {
	frames chan []float32
}

func NewNullBackend() *NullBackend {
	return &NullBackend{}
}

func (n *NullBackend) Open() error { return nil }
func (n *NullBackend) Start() error {
	n.frames = make(chan []float32)
	return nil
}
func (n *NullBackend) Stop() error {
	if n.frames != nil {
		close(n.frames)
		n.frames = nil
	}
	return nil
}
func (n *NullBackend) Close() error             { return nil }
func (n *NullBackend) Frames() <-chan []float32 { return n.frames }
