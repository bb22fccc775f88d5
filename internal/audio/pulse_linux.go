//go:build linux

package audio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"hostcast/internal/types"
)

// Capture records the default sink's monitor source via PulseAudio, which
// is the system's own output played back as an input stream.
type Capture struct {
	client *pulse.Client
	stream *pulse.RecordStream
	buf    *pcmBuffer

	closeOnce sync.Once
}

// pcmBuffer implements pulse.Writer. The record stream pushes S16LE bytes
// in; ReadChunk blocks on the condition variable until a full chunk is
// buffered.
type pcmBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	data   []byte
	closed bool
}

func newPCMBuffer() *pcmBuffer {
	b := &pcmBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *pcmBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
	b.cond.Signal()
	return len(p), nil
}

func (b *pcmBuffer) Format() byte {
	return proto.FormatInt16LE
}

func (b *pcmBuffer) waitChunk(size int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.data) < size && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return nil, ErrClosed
	}
	out := make([]byte, size)
	copy(out, b.data[:size])
	b.data = b.data[size:]
	return out, nil
}

func (b *pcmBuffer) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// NewLoopback connects to PulseAudio and starts recording the default
// sink's monitor source.
func NewLoopback() (types.AudioCapturer, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("hostcast"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: pulse connect: %v", ErrNoDevice, err)
	}

	sink, err := client.DefaultSink()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: default sink: %v", ErrNoDevice, err)
	}

	buf := newPCMBuffer()
	stream, err := client.NewRecord(
		buf,
		pulse.RecordMonitor(sink),
		pulse.RecordStereo,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(uint32(ChunkFrames*Channels*bytesPerSample)),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("audio: record stream: %w", err)
	}
	stream.Start()

	return &Capture{client: client, stream: stream, buf: buf}, nil
}

// ReadChunk blocks until one chunk of PCM is available. It returns
// ErrClosed after Close, which is how the audio loop observes shutdown.
func (c *Capture) ReadChunk() (*types.PCMChunk, error) {
	data, err := c.buf.waitChunk(ChunkFrames * Channels * bytesPerSample)
	if err != nil {
		return nil, err
	}
	return &types.PCMChunk{Data: data, Rate: SampleRate, Channels: Channels}, nil
}

func (c *Capture) Close() {
	c.closeOnce.Do(func() {
		c.buf.close()
		if c.stream != nil {
			c.stream.Stop()
		}
		c.client.Close()
	})
}
