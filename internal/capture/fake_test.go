package capture

import (
	"sync"
	"time"

	errors "golang.org/x/xerrors"
)

// fakeEnumerator serves fakeDevices for a fixed list of cameras.
type fakeEnumerator struct {
	cams    []CameraInfo
	listErr error
	openErr map[int]error

	mu     sync.Mutex
	opened []int
	devs   []*fakeDevice

	// Applied to each new device.
	setup func(d *fakeDevice)
}

func (e *fakeEnumerator) Cameras() ([]CameraInfo, error) {
	return e.cams, e.listErr
}

func (e *fakeEnumerator) Open(id int) (Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opened = append(e.opened, id)
	if err := e.openErr[id]; err != nil {
		return nil, err
	}
	d := &fakeDevice{id: id}
	if e.setup != nil {
		e.setup(d)
	}
	e.devs = append(e.devs, d)
	return d, nil
}

func (e *fakeEnumerator) last() *fakeDevice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.devs[len(e.devs)-1]
}

type fakeDevice struct {
	id int

	// Behaviour knobs.
	caps         Capabilities
	negotiate    func(req Parameters) (Parameters, error)
	attachErr    error
	detachPanics bool
	releaseErr   error
	startErr     error
	stopErr      error

	mu        sync.Mutex
	requested Parameters
	surface   Surface
	cb        FrameCallback
	queue     []*FrameBuffer
	streaming bool
	released  int
	onError   func(error)
}

func (d *fakeDevice) Capabilities() Capabilities { return d.caps }

func (d *fakeDevice) Negotiate(req Parameters) (Parameters, error) {
	d.mu.Lock()
	d.requested = req
	d.mu.Unlock()
	if d.negotiate != nil {
		return d.negotiate(req)
	}
	return req, nil
}

func (d *fakeDevice) AttachSurface(s Surface) error {
	if d.attachErr != nil {
		return d.attachErr
	}
	d.mu.Lock()
	d.surface = s
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) DetachSurface() error {
	if d.detachPanics {
		panic("surface already destroyed")
	}
	d.mu.Lock()
	d.surface = nil
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) SetErrorHandler(fn func(error)) {
	d.mu.Lock()
	d.onError = fn
	d.mu.Unlock()
}

func (d *fakeDevice) SetFrameCallback(cb FrameCallback) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
}

func (d *fakeDevice) AddCallbackBuffer(buf *FrameBuffer) {
	d.mu.Lock()
	d.queue = append(d.queue, buf)
	d.mu.Unlock()
}

func (d *fakeDevice) StartStreaming() error {
	if d.startErr != nil {
		return d.startErr
	}
	d.mu.Lock()
	d.streaming = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) StopStreaming() error {
	d.mu.Lock()
	d.streaming = false
	d.mu.Unlock()
	return d.stopErr
}

func (d *fakeDevice) Release() error {
	d.mu.Lock()
	d.released++
	d.mu.Unlock()
	return d.releaseErr
}

// capture fills the next submitted buffer with fill and delivers it, as the
// device thread would. Returns false if no buffer was available.
func (d *fakeDevice) capture(fill byte) bool {
	d.mu.Lock()
	if len(d.queue) == 0 || d.cb == nil {
		d.mu.Unlock()
		return false
	}
	buf := d.queue[0]
	d.queue = d.queue[1:]
	cb := d.cb
	d.mu.Unlock()

	data := buf.Bytes()
	for i := range data {
		data[i] = fill
	}
	cb(buf, d)
	return true
}

func (d *fakeDevice) queued() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *fakeDevice) releaseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

type fakeSurface struct{}

func (fakeSurface) Surface() Surface { return "surface" }

type recordingEncoder struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
	panics bool

	// If set, entered is closed on the first call, which then waits for
	// block to be closed.
	entered chan struct{}
	block   chan struct{}
}

func (e *recordingEncoder) AddFrameData(data []byte) error {
	if e.block != nil {
		if e.entered != nil {
			close(e.entered)
			e.entered = nil
		}
		<-e.block
	}
	if e.panics {
		panic("encoder bug")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = append(e.frames, data)
	return e.err
}

func (e *recordingEncoder) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.frames)
}

type textureCall struct {
	handle   TextureHandle
	format   PixelFormat
	width    int
	height   int
	rotation int
	ts       time.Time
	matrix   Matrix
}

type recordingConsumer struct {
	mu    sync.Mutex
	calls []textureCall
}

func (c *recordingConsumer) ConsumeTextureFrame(handle TextureHandle, format PixelFormat, width, height, rotation int,
	ts time.Time, m Matrix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, textureCall{handle, format, width, height, rotation, ts, m})
}

func (c *recordingConsumer) recorded() []textureCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]textureCall(nil), c.calls...)
}

var errFake = errors.New("fake device failure")
