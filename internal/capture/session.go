package capture

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	errors "golang.org/x/xerrors"

	"github.com/lanikai/camsource/internal/logging"
)

var log = logging.DefaultLogger.WithTag("capture")

// Session owns one camera device and drives it through
// CLOSED -> OPENED -> STARTED -> STOPPED -> CLOSED.
//
// Lifecycle methods are safe to call from any goroutine. Device callbacks and
// OnTextureFrameAvailable never take the lifecycle lock, so Stop and Close may
// run concurrently with an in-flight frame.
type Session struct {
	// Accessed atomically; kept first for 64-bit alignment.
	counters counters

	id  string
	cfg Config
	log *logging.Logger

	consumer atomic.Value // consumerBox

	// Mirrors state for lock-free reads.
	stateValue int32

	// Lifecycle lock.
	mu     sync.Mutex
	state  State
	dev    Device
	pool   *BufferPool
	active *stream

	// Guards cur, which frame callbacks read.
	curMu sync.RWMutex
	cur   *stream

	texture *deliveryLoop
	raw     *deliveryLoop
}

// What an open session is bound to. Immutable once published.
type stream struct {
	info   CameraInfo
	params Parameters
	paths  Paths
	pool   *BufferPool
}

type consumerBox struct {
	c TextureConsumer
}

type counters struct {
	textureDelivered uint64
	textureDropped   uint64
	rawDelivered     uint64
	rawDropped       uint64
	encoderErrors    uint64
}

// Stats is a snapshot of a session's frame counters.
type Stats struct {
	State            State
	TextureDelivered uint64
	TextureDropped   uint64
	RawDelivered     uint64
	RawDropped       uint64
	EncoderErrors    uint64
	Pool             PoolStats
}

// NewSession validates cfg and returns a CLOSED session.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	s := &Session{
		id:  uuid.New().String(),
		cfg: cfg,
	}
	s.log = cfg.Logger
	if s.log == nil {
		s.log = log
	}
	s.log = s.log.WithTag("capture/" + s.id[:8])
	s.consumer.Store(consumerBox{cfg.Consumer})
	s.texture = newDeliveryLoop("texture", s.deliverTexture)
	s.raw = newDeliveryLoop("raw", s.deliverRaw)
	return s, nil
}

// ID is a unique identifier for this session, used in log tags.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.stateValue))
}

func (s *Session) setState(state State) {
	s.log.Debug("%v -> %v", s.state, state)
	s.state = state
	atomic.StoreInt32(&s.stateValue, int32(state))
}

// SetConsumer attaches (or, with nil, detaches) the texture consumer. Safe to
// call while streaming; frames arriving without a consumer are dropped.
func (s *Session) SetConsumer(c TextureConsumer) {
	s.consumer.Store(consumerBox{c})
}

func (s *Session) Consumer() TextureConsumer {
	return s.consumer.Load().(consumerBox).c
}

// CameraInfo returns the selected camera. ok is false while CLOSED.
func (s *Session) CameraInfo() (info CameraInfo, ok bool) {
	if st := s.current(); st != nil {
		return st.info, true
	}
	return CameraInfo{}, false
}

// Negotiated returns the parameters the device accepted. ok is false while
// CLOSED.
func (s *Session) Negotiated() (params Parameters, ok bool) {
	if st := s.current(); st != nil {
		return st.params, true
	}
	return Parameters{}, false
}

// Paths returns the delivery paths actually bound. The texture path drops out
// if the surface could not be bound.
func (s *Session) Paths() Paths {
	if st := s.current(); st != nil {
		return st.paths
	}
	return 0
}

func (s *Session) current() *stream {
	s.curMu.RLock()
	defer s.curMu.RUnlock()
	return s.cur
}

func (s *Session) publish(st *stream) {
	s.curMu.Lock()
	s.cur = st
	s.curMu.Unlock()
}

func (s *Session) Stats() Stats {
	st := Stats{
		State:            s.State(),
		TextureDelivered: atomic.LoadUint64(&s.counters.textureDelivered),
		TextureDropped:   atomic.LoadUint64(&s.counters.textureDropped),
		RawDelivered:     atomic.LoadUint64(&s.counters.rawDelivered),
		RawDropped:       atomic.LoadUint64(&s.counters.rawDropped),
		EncoderErrors:    atomic.LoadUint64(&s.counters.encoderErrors),
	}
	if cur := s.current(); cur != nil && cur.pool != nil {
		st.Pool = cur.pool.Stats()
	}
	return st
}

// Open selects and opens a camera, negotiates the preview format, binds the
// delivery paths and allocates the frame buffers. On failure nothing is held
// and the session stays CLOSED; the caller may retry.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateClosed {
		return &StateError{"open", s.state}
	}

	dev, info, err := s.selectDevice()
	if err != nil {
		return err
	}

	st, err := s.configure(dev, info)
	if err != nil {
		s.bestEffort("release device", dev.Release)
		return err
	}

	s.dev = dev
	s.active = st
	s.publish(st)
	s.setState(StateOpened)
	return nil
}

// Prefer a front-facing camera, then fall back to the others in order.
func (s *Session) selectDevice() (Device, CameraInfo, error) {
	cams, err := s.cfg.Cameras.Cameras()
	if err != nil {
		return nil, CameraInfo{}, errors.Errorf("capture: enumerating cameras: %v: %w", err, ErrDeviceUnavailable)
	}
	if len(cams) == 0 {
		return nil, CameraInfo{}, errors.Errorf("capture: no cameras found: %w", ErrDeviceUnavailable)
	}

	order := make([]int, 0, len(cams))
	for id, info := range cams {
		if info.Facing == FacingFront {
			order = append(order, id)
		}
	}
	if len(order) == 0 {
		s.log.Debug("No front-facing camera found; opening default")
	}
	for id, info := range cams {
		if info.Facing != FacingFront {
			order = append(order, id)
		}
	}

	var lastErr error
	for _, id := range order {
		dev, err := s.cfg.Cameras.Open(id)
		if err != nil {
			s.log.Warn("camera %d (%v): %v", id, cams[id].Facing, err)
			lastErr = err
			continue
		}
		if dev == nil {
			continue
		}
		s.log.Info("Opened camera %d: facing %v, mounted at %d°", id, cams[id].Facing, cams[id].Orientation)
		return dev, cams[id], nil
	}
	if lastErr == nil {
		lastErr = errors.New("no device handle returned")
	}
	return nil, CameraInfo{}, errors.Errorf("capture: %d cameras, none opened (%v): %w", len(cams), lastErr, ErrDeviceUnavailable)
}

func (s *Session) configure(dev Device, info CameraInfo) (*stream, error) {
	caps := dev.Capabilities()
	for _, size := range caps.PreviewSizes {
		s.log.Debug("supported preview size %v", size)
	}
	s.log.Debug("supported formats %v, frame rates %v", caps.Formats, caps.FPSRanges)

	req := Parameters{
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
		Format: s.cfg.PixelFormat,
		FPS:    s.pickFPS(caps),
	}
	got, err := dev.Negotiate(req)
	if err != nil {
		return nil, errors.Errorf("capture: negotiating %dx%d %v: %w", req.Width, req.Height, req.Format, err)
	}
	if got.Width <= 0 || got.Height <= 0 {
		return nil, errors.Errorf("capture: device negotiated invalid size %dx%d", got.Width, got.Height)
	}
	s.log.Info("Camera config: %dx%d %v, %d-%d fps", got.Width, got.Height, got.Format, got.FPS.Min, got.FPS.Max)
	if got.Width != req.Width || got.Height != req.Height {
		s.log.Warn("requested %dx%d, device chose %dx%d", req.Width, req.Height, got.Width, got.Height)
	}

	paths := s.cfg.Paths
	if paths.has(PathRaw) && got.Format != PixelFormatNV21 {
		return nil, errors.Errorf("capture: device negotiated %v: %w", got.Format, ErrUnsupportedFormat)
	}

	dev.SetErrorHandler(func(err error) {
		s.log.Error("device error: %v", err)
	})

	if paths.has(PathTexture) {
		if err := s.bindSurface(dev); err != nil {
			if !paths.has(PathRaw) {
				return nil, err
			}
			s.log.Warn("%v; continuing without preview", err)
			paths &^= PathTexture
		}
	}

	st := &stream{info: info, params: got, paths: paths}
	if paths.has(PathRaw) {
		pool, err := s.allocateBuffers(got.Width, got.Height)
		if err != nil {
			if paths.has(PathTexture) {
				s.bestEffort("detach surface", dev.DetachSurface)
			}
			return nil, err
		}
		st.pool = pool
	}
	return st, nil
}

func (s *Session) pickFPS(caps Capabilities) FPSRange {
	if s.cfg.MaxFPS > 0 {
		return FPSRange{s.cfg.MinFPS, s.cfg.MaxFPS}
	}
	if n := len(caps.FPSRanges); n > 0 {
		return caps.FPSRanges[n-1]
	}
	return FPSRange{}
}

func (s *Session) bindSurface(dev Device) error {
	if s.cfg.Surface == nil {
		return errors.Errorf("capture: no surface provider: %w", ErrSurfaceBinding)
	}
	if err := dev.AttachSurface(s.cfg.Surface.Surface()); err != nil {
		return errors.Errorf("capture: %v: %w", err, ErrSurfaceBinding)
	}
	return nil
}

// The buffer set is reused across opens when the negotiated size is
// unchanged; otherwise it is reallocated as a whole.
func (s *Session) allocateBuffers(width, height int) (*BufferPool, error) {
	if s.pool == nil {
		pool, err := NewBufferPool(s.cfg.NumBuffers, width, height)
		if err != nil {
			return nil, err
		}
		s.pool = pool
		return pool, nil
	}
	if w, h := s.pool.Size(); w != width || h != height {
		if err := s.pool.Reallocate(width, height); err != nil {
			return nil, err
		}
	}
	return s.pool, nil
}

// Start begins streaming. Only valid when OPENED. A raw-path session needs an
// encoder to deliver to.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpened {
		return &StateError{"start", s.state}
	}
	st := s.active
	if st.paths.has(PathRaw) && s.cfg.Encoder == nil {
		return ErrNoEncoder
	}

	if st.paths.has(PathTexture) {
		s.texture.start()
	}
	if st.paths.has(PathRaw) {
		s.raw.start()
		s.dev.SetFrameCallback(s.onRawFrame)
		s.submitBuffers(st.pool, s.dev)
	}

	if err := s.dev.StartStreaming(); err != nil {
		s.dev.SetFrameCallback(nil)
		s.raw.stop()
		s.texture.stop()
		if st.pool != nil {
			// Whatever the device still holds is forgotten.
			st.pool.Reset()
		}
		return errors.Errorf("capture: starting stream: %w", err)
	}

	s.setState(StateStarted)
	return nil
}

// Hand every idle buffer to the device.
func (s *Session) submitBuffers(pool *BufferPool, dev Device) {
	for {
		buf, err := pool.Acquire()
		if err != nil {
			return
		}
		dev.AddCallbackBuffer(buf)
	}
}

// Stop halts streaming but keeps the device. Only valid when STARTED.
// Device errors are logged, not returned.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarted {
		return &StateError{"stop", s.state}
	}
	s.halt()
	s.setState(StateStopped)
	return nil
}

func (s *Session) halt() {
	s.bestEffort("stop streaming", s.dev.StopStreaming)
	if s.active.paths.has(PathRaw) {
		s.bestEffort("clear frame callback", func() error {
			s.dev.SetFrameCallback(nil)
			return nil
		})
	}
	s.raw.stop()
	s.texture.stop()
}

// Close stops streaming if necessary, detaches the preview surface and
// releases the device. Teardown always runs to completion: failures along the
// way are logged and Close returns nil. Closing a CLOSED session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return nil
	case StateStarted:
		s.halt()
	}

	if s.active.paths.has(PathTexture) {
		s.bestEffort("detach surface", s.dev.DetachSurface)
	}
	s.bestEffort("release device", s.dev.Release)

	s.publish(nil)
	if s.active.pool != nil {
		s.active.pool.Reset()
	}
	s.dev = nil
	s.active = nil
	s.setState(StateClosed)
	s.log.Debug("device released")
	return nil
}

// bestEffort runs a teardown step, logging its error or panic.
func (s *Session) bestEffort(what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("%s panicked: %v", what, r)
		}
	}()
	if err := fn(); err != nil {
		s.log.Warn("%s: %v", what, err)
	}
}
