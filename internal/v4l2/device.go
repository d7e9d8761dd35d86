//go:build linux
// +build linux

package v4l2

import (
	"image"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/lanikai/camsource/internal/capture"
	"github.com/lanikai/camsource/internal/color"
)

// Number of kernel driver buffers requested when streaming starts.
const defaultKernelBuffers = 4

// How long the read loop waits for a frame before checking for shutdown.
const pollTimeout = 100 * time.Millisecond

// A V4L2 character device, implementing capture.Device. Frames are read on a
// dedicated goroutine and copied (or converted) into callback buffers the
// session has submitted; a frame that arrives while no buffer is submitted is
// dropped.
type device struct {
	// Device path, usually "/dev/video0".
	path string

	// File descriptor of v4l2 device.
	fd int

	caps capture.Capabilities

	// Number of requested kernel driver buffers.
	numBuffers int

	mu sync.Mutex

	// Negotiated format.
	width, height int
	fourcc        uint32
	bytesPerLine  int

	// Memory-mapped kernel buffers, indexed like the driver's.
	mmaps [][]byte

	callback capture.FrameCallback
	onError  func(error)
	pending  []*capture.FrameBuffer

	// Non-nil while streaming.
	quit chan struct{}
	done chan struct{}

	dropped uint64
}

func openDevice(path string, caps capture.Capabilities) (*device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "v4l2: open %s", path)
	}

	return &device{
		path:       path,
		fd:         fd,
		caps:       caps,
		numBuffers: defaultKernelBuffers,
	}, nil
}

func (dev *device) ioctl(request uintptr, arg unsafe.Pointer) error {
	return ioctl(dev.fd, request, arg)
}

func (dev *device) Capabilities() capture.Capabilities {
	return dev.caps
}

// Negotiate sets the capture format. NV21 is preferred; a device that only
// offers YUYV is accepted and its frames are converted to NV21 on read.
func (dev *device) Negotiate(req capture.Parameters) (capture.Parameters, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.quit != nil {
		return capture.Parameters{}, errors.Errorf("v4l2: %s: cannot change format while streaming", dev.path)
	}
	if req.Format != capture.PixelFormatNV21 {
		return capture.Parameters{}, errors.Wrapf(capture.ErrUnsupportedFormat, "v4l2: %s: %v", dev.path, req.Format)
	}

	var pix *v4l2_pix_format
	for _, fourcc := range []uint32{V4L2_PIX_FMT_NV21, V4L2_PIX_FMT_YUYV} {
		got, err := dev.setPixelFormat(req.Width, req.Height, fourcc)
		if err != nil {
			return capture.Parameters{}, errors.Wrapf(err, "v4l2: %s: set format %s", dev.path, FourCC(fourcc))
		}
		if got.pixelformat == fourcc {
			pix = got
			break
		}
		log.Debug("%s: %s not accepted, driver chose %s", dev.path, FourCC(fourcc), FourCC(got.pixelformat))
	}
	if pix == nil {
		return capture.Parameters{}, errors.Wrapf(capture.ErrUnsupportedFormat, "v4l2: %s: neither NV21 nor YUYV", dev.path)
	}
	if pix.width%2 != 0 || pix.height%2 != 0 {
		return capture.Parameters{}, errors.Errorf("v4l2: %s: odd frame size %dx%d", dev.path, pix.width, pix.height)
	}

	dev.width = int(pix.width)
	dev.height = int(pix.height)
	dev.fourcc = pix.pixelformat
	dev.bytesPerLine = int(pix.bytesperline)
	if dev.bytesPerLine == 0 {
		dev.bytesPerLine = dev.width
		if dev.fourcc == V4L2_PIX_FMT_YUYV {
			dev.bytesPerLine = 2 * dev.width
		}
	}
	log.Info("%s: %dx%d %s", dev.path, dev.width, dev.height, FourCC(dev.fourcc))

	got := capture.Parameters{
		Width:  dev.width,
		Height: dev.height,
		Format: capture.PixelFormatNV21,
		FPS:    dev.negotiateRate(req.FPS, dev.setFrameRate),
	}
	return got, nil
}

// The frame rate the driver reports after asking for req.Max. The zero range
// means unknown: either none was requested or the driver has no frame rate
// control.
func (dev *device) negotiateRate(req capture.FPSRange, set func(fps int) (int, error)) capture.FPSRange {
	if req.Max <= 0 {
		return capture.FPSRange{}
	}
	fps, err := set(req.Max)
	if err != nil {
		// Not every driver supports frame rate control.
		log.Warn("%s: set frame rate %d: %v", dev.path, req.Max, err)
		return capture.FPSRange{}
	}
	if fps <= 0 {
		return capture.FPSRange{}
	}
	return capture.FPSRange{Min: fps, Max: fps}
}

// Set pixel format and return what the driver actually chose.
func (dev *device) setPixelFormat(width, height int, fourcc uint32) (*v4l2_pix_format, error) {
	f := v4l2_format{typ: V4L2_BUF_TYPE_VIDEO_CAPTURE}
	*f.pix() = v4l2_pix_format{
		width:       uint32(width),
		height:      uint32(height),
		pixelformat: fourcc,
		field:       V4L2_FIELD_ANY,
	}
	if err := dev.ioctl(VIDIOC_S_FMT, unsafe.Pointer(&f)); err != nil {
		return nil, err
	}
	got := *f.pix()
	return &got, nil
}

func (dev *device) setFrameRate(fps int) (int, error) {
	p := v4l2_streamparm{typ: V4L2_BUF_TYPE_VIDEO_CAPTURE}
	if err := dev.ioctl(VIDIOC_G_PARM, unsafe.Pointer(&p)); err != nil {
		return 0, err
	}
	if p.capture().capability&V4L2_CAP_TIMEPERFRAME == 0 {
		return 0, errors.New("frame rate control not supported")
	}
	p.capture().timeperframe = v4l2_fract{numerator: 1, denominator: uint32(fps)}
	if err := dev.ioctl(VIDIOC_S_PARM, unsafe.Pointer(&p)); err != nil {
		return 0, err
	}
	tpf := p.capture().timeperframe
	if tpf.numerator == 0 {
		return 0, nil
	}
	return int(tpf.denominator / tpf.numerator), nil
}

func (dev *device) AttachSurface(capture.Surface) error {
	return errors.Errorf("v4l2: %s: texture output not supported", dev.path)
}

func (dev *device) DetachSurface() error {
	return nil
}

func (dev *device) SetErrorHandler(fn func(error)) {
	dev.mu.Lock()
	dev.onError = fn
	dev.mu.Unlock()
}

func (dev *device) SetFrameCallback(cb capture.FrameCallback) {
	dev.mu.Lock()
	dev.callback = cb
	dev.mu.Unlock()
}

func (dev *device) AddCallbackBuffer(buf *capture.FrameBuffer) {
	dev.mu.Lock()
	dev.pending = append(dev.pending, buf)
	dev.mu.Unlock()
}

// StartStreaming maps the kernel buffers, queues them and starts the read
// loop.
func (dev *device) StartStreaming() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.quit != nil {
		return nil
	}
	if dev.fourcc == 0 {
		return errors.Errorf("v4l2: %s: no format negotiated", dev.path)
	}

	if err := dev.mapMemory(); err != nil {
		dev.unmapMemory()
		return errors.Wrapf(err, "v4l2: %s: map buffers", dev.path)
	}
	for i := range dev.mmaps {
		if err := dev.enqueue(i); err != nil {
			dev.unmapMemory()
			return errors.Wrapf(err, "v4l2: %s: queue buffer %d", dev.path, i)
		}
	}
	if err := dev.enableStream(); err != nil {
		dev.unmapMemory()
		return errors.Wrapf(err, "v4l2: %s: stream on", dev.path)
	}

	dev.quit = make(chan struct{})
	dev.done = make(chan struct{})
	go dev.readLoop(dev.quit, dev.done)
	return nil
}

// StopStreaming stops the read loop, waiting for an in-progress frame
// callback to return, then releases the kernel buffers. Buffers submitted
// with AddCallbackBuffer are forgotten.
func (dev *device) StopStreaming() error {
	dev.mu.Lock()
	quit, done := dev.quit, dev.done
	dev.quit, dev.done = nil, nil
	dev.mu.Unlock()

	if quit == nil {
		return nil
	}
	close(quit)
	<-done

	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.pending = nil
	if dev.dropped > 0 {
		log.Info("%s: dropped %d frames with no buffer available", dev.path, dev.dropped)
		dev.dropped = 0
	}

	// Disable stream (dequeues any outstanding buffers as well).
	err := dev.disableStream()
	if uerr := dev.unmapMemory(); err == nil {
		err = uerr
	}
	return errors.Wrapf(err, "v4l2: %s: stream off", dev.path)
}

// Release stops streaming if necessary and closes the device.
func (dev *device) Release() error {
	if err := dev.StopStreaming(); err != nil {
		log.Warn("%v", err)
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.fd < 0 {
		return nil
	}
	err := unix.Close(dev.fd)
	dev.fd = -1
	return errors.Wrapf(err, "v4l2: close %s", dev.path)
}

func (dev *device) readLoop(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	fds := []unix.PollFd{{Fd: int32(dev.fd), Events: unix.POLLIN}}
	for {
		select {
		case <-quit:
			return
		default:
		}

		n, err := unix.Poll(fds, int(pollTimeout/time.Millisecond))
		if err == unix.EINTR || n == 0 {
			continue
		}
		if err != nil {
			dev.fail(errors.Wrapf(err, "v4l2: %s: poll", dev.path))
			return
		}

		index, used, err := dev.dequeue()
		if err == unix.EAGAIN {
			continue
		}
		if err != nil {
			dev.fail(errors.Wrapf(err, "v4l2: %s: dequeue", dev.path))
			return
		}

		buf, cb := dev.fill(index, used)
		if err := dev.enqueue(index); err != nil {
			dev.fail(errors.Wrapf(err, "v4l2: %s: requeue", dev.path))
			return
		}
		if buf != nil {
			cb(buf, dev)
		}
	}
}

// Copy kernel buffer index into the next submitted callback buffer. Returns
// nil if the frame was dropped.
func (dev *device) fill(index, used int) (*capture.FrameBuffer, capture.FrameCallback) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.callback == nil || len(dev.pending) == 0 {
		dev.dropped++
		return nil, nil
	}
	buf := dev.pending[0]
	dev.pending = dev.pending[1:]

	src := dev.mmaps[index][:used]
	dst := buf.Bytes()
	switch dev.fourcc {
	case V4L2_PIX_FMT_NV21:
		if dev.bytesPerLine == dev.width {
			copy(dst, src)
		} else {
			copyPlanes(dst, src, dev.width, dev.height, dev.bytesPerLine)
		}
	case V4L2_PIX_FMT_YUYV:
		yuyv := &color.YUYV{
			Packed: src,
			Rect:   image.Rect(0, 0, dev.width, dev.height),
			Stride: dev.bytesPerLine,
		}
		if err := color.YUYVToNV21(dst, yuyv); err != nil {
			log.Debug("%s: short frame (%d bytes): %v", dev.path, used, err)
			dev.pending = append(dev.pending, buf)
			dev.dropped++
			return nil, nil
		}
	}
	return buf, dev.callback
}

// Copy padded NV21 rows into a tightly packed frame.
func copyPlanes(dst, src []byte, width, height, stride int) {
	rows := height + height/2
	for row := 0; row < rows && (row+1)*stride <= len(src); row++ {
		copy(dst[row*width:(row+1)*width], src[row*stride:row*stride+width])
	}
}

func (dev *device) fail(err error) {
	dev.mu.Lock()
	onError := dev.onError
	dev.mu.Unlock()
	log.Error("%v", err)
	if onError != nil {
		onError(err)
	}
}

// Request specified number of kernel buffers memory-mapped to user-space.
func (dev *device) requestBuffers(n int) (int, error) {
	rb := v4l2_requestbuffers{
		count:  uint32(n),
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	err := dev.ioctl(VIDIOC_REQBUFS, unsafe.Pointer(&rb))
	return int(rb.count), err
}

// Query buffer parameters.
func (dev *device) queryBuffer(n int) (length, offset uint32, err error) {
	qb := v4l2_buffer{
		index:  uint32(n),
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err = dev.ioctl(VIDIOC_QUERYBUF, unsafe.Pointer(&qb)); err != nil {
		return
	}
	return qb.length, qb.offset(), nil
}

func (dev *device) mapMemory() error {
	if dev.mmaps != nil {
		panic("v4l2 device: memory already mapped")
	}

	n, err := dev.requestBuffers(dev.numBuffers)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("driver granted no buffers")
	}

	dev.mmaps = make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		length, offset, err := dev.queryBuffer(i)
		if err != nil {
			return err
		}
		data, err := unix.Mmap(dev.fd, int64(offset), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return err
		}
		dev.mmaps = append(dev.mmaps, data)
	}
	return nil
}

func (dev *device) unmapMemory() error {
	var err error
	for _, data := range dev.mmaps {
		if merr := unix.Munmap(data); merr != nil && err == nil {
			err = merr
		}
	}
	dev.mmaps = nil

	if _, rerr := dev.requestBuffers(0); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

func (dev *device) enqueue(index int) error {
	qbuf := v4l2_buffer{
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
		index:  uint32(index),
	}
	return dev.ioctl(VIDIOC_QBUF, unsafe.Pointer(&qbuf))
}

func (dev *device) dequeue() (index, used int, err error) {
	dqbuf := v4l2_buffer{
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	err = dev.ioctl(VIDIOC_DQBUF, unsafe.Pointer(&dqbuf))
	return int(dqbuf.index), int(dqbuf.bytesused), err
}

func (dev *device) enableStream() error {
	typ := int32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	return dev.ioctl(VIDIOC_STREAMON, unsafe.Pointer(&typ))
}

func (dev *device) disableStream() error {
	typ := int32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	return dev.ioctl(VIDIOC_STREAMOFF, unsafe.Pointer(&typ))
}

// Query driver identity and the formats, sizes it advertises.
func probe(path string) (*deviceInfo, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "v4l2: open %s", path)
	}
	defer unix.Close(fd)

	var vcap v4l2_capability
	if err := ioctl(fd, VIDIOC_QUERYCAP, unsafe.Pointer(&vcap)); err != nil {
		return nil, errors.Wrapf(err, "v4l2: %s: query capabilities", path)
	}
	caps := vcap.capabilities
	if caps&V4L2_CAP_DEVICE_CAPS != 0 {
		caps = vcap.device_caps
	}

	info := &deviceInfo{
		path:    path,
		driver:  cstring(vcap.driver[:]),
		card:    cstring(vcap.card[:]),
		capture: caps&V4L2_CAP_VIDEO_CAPTURE != 0 && caps&V4L2_CAP_STREAMING != 0,
	}
	if !info.capture {
		return info, nil
	}

	for i := uint32(0); ; i++ {
		desc := v4l2_fmtdesc{index: i, typ: V4L2_BUF_TYPE_VIDEO_CAPTURE}
		if err := ioctl(fd, VIDIOC_ENUM_FMT, unsafe.Pointer(&desc)); err != nil {
			break
		}
		info.fourccs = append(info.fourccs, desc.pixelformat)
		if desc.pixelformat != V4L2_PIX_FMT_NV21 && desc.pixelformat != V4L2_PIX_FMT_YUYV {
			continue
		}
		for j := uint32(0); ; j++ {
			fse := v4l2_frmsizeenum{index: j, pixel_format: desc.pixelformat}
			if err := ioctl(fd, VIDIOC_ENUM_FRAMESIZES, unsafe.Pointer(&fse)); err != nil {
				break
			}
			if fse.typ != V4L2_FRMSIZE_TYPE_DISCRETE {
				break
			}
			info.addSize(capture.Size{Width: int(fse.discrete[0]), Height: int(fse.discrete[1])})
		}
	}
	return info, nil
}

func open(path string, info *deviceInfo) (capture.Device, error) {
	dev, err := openDevice(path, info.capabilities())
	if err != nil {
		return nil, err
	}
	return dev, nil
}
