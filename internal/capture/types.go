package capture

import (
	"strconv"
	"time"
)

// Facing is the direction a camera points, relative to the screen.
type Facing int

const (
	FacingBack Facing = iota
	FacingFront
)

func (f Facing) String() string {
	switch f {
	case FacingBack:
		return "back"
	case FacingFront:
		return "front"
	default:
		return "Facing(" + strconv.Itoa(int(f)) + ")"
	}
}

// CameraInfo describes a camera as reported by enumeration. It does not change
// once a device has been selected.
type CameraInfo struct {
	Facing Facing

	// Angle in degrees (0-359) by which the sensor is rotated relative to the
	// device's natural orientation.
	Orientation int
}

// PixelFormat identifies the layout of a delivered frame.
type PixelFormat int

const (
	// NV21: full-resolution Y plane followed by interleaved V/U at quarter
	// resolution. width*height*3/2 bytes.
	PixelFormatNV21 PixelFormat = iota + 1

	// An opaque external texture handle. No pixels pass through this package.
	PixelFormatTextureOES
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatNV21:
		return "NV21"
	case PixelFormatTextureOES:
		return "TEXTURE_OES"
	default:
		return "PixelFormat(" + strconv.Itoa(int(f)) + ")"
	}
}

// State is the lifecycle state of a Session.
type State int

const (
	StateClosed State = iota
	StateOpened
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpened:
		return "OPENED"
	case StateStarted:
		return "STARTED"
	case StateStopped:
		return "STOPPED"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Paths selects which delivery paths a session binds.
type Paths uint8

const (
	PathTexture Paths = 1 << iota
	PathRaw

	PathBoth = PathTexture | PathRaw
)

func (p Paths) has(q Paths) bool {
	return p&q != 0
}

func (p Paths) String() string {
	switch p {
	case PathTexture:
		return "texture"
	case PathRaw:
		return "raw"
	case PathBoth:
		return "texture+raw"
	default:
		return "none"
	}
}

// FPSRange is a frame rate range in frames per second.
type FPSRange struct {
	Min, Max int
}

// Parameters are the preview settings requested from, or accepted by, a
// device.
type Parameters struct {
	Width, Height int
	Format        PixelFormat
	FPS           FPSRange
}

// Capabilities is what a device advertises before negotiation.
type Capabilities struct {
	PreviewSizes []Size
	Formats      []PixelFormat
	FPSRanges    []FPSRange
}

type Size struct {
	Width, Height int
}

func (s Size) String() string {
	return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}

// TextureHandle names a hardware texture owned by the rendering side.
type TextureHandle uint32

// TextureFrame is a frame rendered into the bound surface. It is only valid
// for the duration of the notification that carries it.
type TextureFrame struct {
	Handle      TextureHandle
	Matrix      Matrix
	TimestampNs int64
}

// Surface is an opaque renderable target that a device can draw into.
type Surface interface{}

// SurfaceProvider supplies the hardware surface for the texture path. The
// provider also owns the render thread that calls OnTextureFrameAvailable.
type SurfaceProvider interface {
	Surface() Surface
}

// FrameCallback receives a filled callback buffer. The buffer must be handed
// back with AddCallbackBuffer before the device can write into it again.
type FrameCallback func(buf *FrameBuffer, dev Device)

// Enumerator lists and opens cameras. Camera ids are indices into the slice
// returned by Cameras.
type Enumerator interface {
	Cameras() ([]CameraInfo, error)
	Open(id int) (Device, error)
}

// Device is an open camera.
type Device interface {
	Capabilities() Capabilities

	// Negotiate applies the requested parameters and returns what the device
	// actually accepted, which may differ.
	Negotiate(req Parameters) (Parameters, error)

	AttachSurface(s Surface) error
	DetachSurface() error

	SetErrorHandler(func(error))

	// SetFrameCallback installs (or, with nil, removes) the raw frame
	// callback. Frames are delivered sequentially on a device goroutine.
	SetFrameCallback(cb FrameCallback)
	AddCallbackBuffer(buf *FrameBuffer)

	StartStreaming() error
	StopStreaming() error

	// Release frees the device. Any submitted callback buffers are forgotten.
	Release() error
}

// TextureConsumer receives texture frames, e.g. a renderer or transport.
type TextureConsumer interface {
	ConsumeTextureFrame(handle TextureHandle, format PixelFormat, width, height, rotation int,
		timestamp time.Time, matrix Matrix)
}

// Encoder receives raw NV21 frames. The session passes a copy unless
// Config.ZeroCopy is set, in which case the slice is only valid during the
// call and must not be retained.
type Encoder interface {
	AddFrameData(data []byte) error
}

// VideoCapturer is the capture lifecycle as seen by the texture-producing
// side that hosts a session.
type VideoCapturer interface {
	Open() error
	Start() error
	Stop() error
	Close() error
	OnTextureFrameAvailable(handle TextureHandle, m Matrix, timestampNs int64)
}

var _ VideoCapturer = (*Session)(nil)
