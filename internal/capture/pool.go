package capture

import (
	"sync"

	errors "golang.org/x/xerrors"
)

// FrameSize is the number of bytes in one NV21 frame.
func FrameSize(width, height int) int {
	return width * height * 3 / 2
}

// A FrameBuffer is one raw frame slot. While idle it belongs to the pool; an
// acquired buffer belongs to whoever acquired it (normally the device, then
// the raw delivery path) until it is released.
type FrameBuffer struct {
	index      int
	generation uint64
	data       []byte
}

// Bytes returns the underlying byte buffer.
func (b *FrameBuffer) Bytes() []byte {
	return b.data
}

func (b *FrameBuffer) Index() int {
	return b.index
}

// BufferPool is a fixed set of equally sized frame buffers recycled by
// explicit hand-back. It never blocks: acquiring with nothing idle and
// releasing something that is not in flight are both reported as errors.
type BufferPool struct {
	mu sync.Mutex

	width, height int

	// Bumped by Reallocate and Reset so that buffers from an earlier set are
	// recognised.
	generation uint64

	buffers  []*FrameBuffer
	inFlight []bool
	idle     []int // stack of idle indices

	acquires, releases uint64
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Capacity   int
	InFlight   int
	FrameSize  int
	Acquires   uint64
	Releases   uint64
	Generation uint64
}

func NewBufferPool(n, width, height int) (*BufferPool, error) {
	if n <= 0 {
		return nil, errors.Errorf("capture: buffer count must be positive, got %d", n)
	}
	p := &BufferPool{}
	if err := p.allocate(n, width, height); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *BufferPool) allocate(n, width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("capture: invalid frame size %dx%d", width, height)
	}
	size := FrameSize(width, height)

	p.generation++
	p.width, p.height = width, height
	p.buffers = make([]*FrameBuffer, n)
	p.inFlight = make([]bool, n)
	p.idle = p.idle[:0]
	for i := range p.buffers {
		p.buffers[i] = &FrameBuffer{
			index:      i,
			generation: p.generation,
			data:       make([]byte, size),
		}
	}
	// Hand out the lowest index first.
	for i := n - 1; i >= 0; i-- {
		p.idle = append(p.idle, i)
	}
	return nil
}

// Acquire takes an idle buffer out of the pool.
func (p *BufferPool) Acquire() (*FrameBuffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.idle)
	if n == 0 {
		return nil, ErrPoolExhausted
	}
	i := p.idle[n-1]
	p.idle = p.idle[:n-1]
	p.inFlight[i] = true
	p.acquires++
	return p.buffers[i], nil
}

// Release returns an in-flight buffer to the pool.
func (p *BufferPool) Release(b *FrameBuffer) error {
	if b == nil {
		return errors.Errorf("capture: release of nil buffer: %w", ErrBufferNotInFlight)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if b.generation != p.generation || b.index >= len(p.buffers) || p.buffers[b.index] != b {
		return ErrStaleBuffer
	}
	if !p.inFlight[b.index] {
		return errors.Errorf("capture: buffer %d released twice: %w", b.index, ErrBufferNotInFlight)
	}
	p.inFlight[b.index] = false
	p.idle = append(p.idle, b.index)
	p.releases++
	return nil
}

// Reallocate replaces the whole buffer set with buffers for a new frame size.
// Buffers cannot be resized individually, so every buffer must be idle.
func (p *BufferPool) Reallocate(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.buffers) - len(p.idle); n > 0 {
		return errors.Errorf("capture: cannot reallocate with %d buffers in flight: %w", n, ErrPoolBusy)
	}
	return p.allocate(len(p.buffers), width, height)
}

// Reset reclaims every buffer, in flight or not. Only valid once whoever held
// the in-flight buffers (the device) is gone; late releases of the old
// buffers then fail with ErrStaleBuffer.
func (p *BufferPool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.allocate(len(p.buffers), p.width, p.height)
}

func (p *BufferPool) Size() (width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		Capacity:   len(p.buffers),
		InFlight:   len(p.buffers) - len(p.idle),
		FrameSize:  FrameSize(p.width, p.height),
		Acquires:   p.acquires,
		Releases:   p.releases,
		Generation: p.generation,
	}
}
