//go:build linux
// +build linux

package v4l2

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Subset of <linux/videodev2.h>. Struct layouts follow the kernel ABI for the
// running architecture; the ioctl request numbers are derived from them.

const (
	V4L2_BUF_TYPE_VIDEO_CAPTURE = 1
	V4L2_MEMORY_MMAP            = 1
	V4L2_FIELD_ANY              = 0

	V4L2_CAP_VIDEO_CAPTURE = 0x00000001
	V4L2_CAP_STREAMING     = 0x04000000
	V4L2_CAP_DEVICE_CAPS   = 0x80000000

	V4L2_FRMSIZE_TYPE_DISCRETE = 1

	V4L2_CAP_TIMEPERFRAME = 0x1000
)

type v4l2_capability struct {
	driver       [16]uint8
	card         [32]uint8
	bus_info     [32]uint8
	version      uint32
	capabilities uint32
	device_caps  uint32
	reserved     [3]uint32
}

type v4l2_fmtdesc struct {
	index       uint32
	typ         uint32
	flags       uint32
	description [32]uint8
	pixelformat uint32
	mbus_code   uint32
	reserved    [3]uint32
}

type v4l2_pix_format struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcr_enc    uint32
	quantization uint32
	xfer_func    uint32
}

const ptrSize = unsafe.Sizeof(uintptr(0))

type v4l2_format struct {
	typ uint32
	_   [ptrSize - 4]byte // union is pointer-aligned
	fmt [200]byte
}

func (f *v4l2_format) pix() *v4l2_pix_format {
	return (*v4l2_pix_format)(unsafe.Pointer(&f.fmt[0]))
}

type v4l2_frmsizeenum struct {
	index        uint32
	pixel_format uint32
	typ          uint32
	discrete     [6]uint32 // union; discrete uses the first two words
	reserved     [2]uint32
}

type v4l2_requestbuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	reserved     [1]uint32
}

type v4l2_timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type v4l2_buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp unix.Timeval
	timecode  v4l2_timecode
	sequence  uint32
	memory    uint32
	m         [ptrSize]byte // union { offset; userptr; planes; fd }
	length    uint32
	reserved2 uint32
	request   uint32
}

func (b *v4l2_buffer) offset() uint32 {
	return *(*uint32)(unsafe.Pointer(&b.m[0]))
}

type v4l2_fract struct {
	numerator   uint32
	denominator uint32
}

type v4l2_captureparm struct {
	capability   uint32
	capturemode  uint32
	timeperframe v4l2_fract
	extendedmode uint32
	readbuffers  uint32
	reserved     [4]uint32
}

type v4l2_streamparm struct {
	typ  uint32
	parm [200]byte
}

func (p *v4l2_streamparm) capture() *v4l2_captureparm {
	return (*v4l2_captureparm)(unsafe.Pointer(&p.parm[0]))
}

// <asm-generic/ioctl.h>
const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | 'V'<<8 | nr
}

var (
	VIDIOC_QUERYCAP        = ioc(iocRead, 0, unsafe.Sizeof(v4l2_capability{}))
	VIDIOC_ENUM_FMT        = ioc(iocRead|iocWrite, 2, unsafe.Sizeof(v4l2_fmtdesc{}))
	VIDIOC_G_FMT           = ioc(iocRead|iocWrite, 4, unsafe.Sizeof(v4l2_format{}))
	VIDIOC_S_FMT           = ioc(iocRead|iocWrite, 5, unsafe.Sizeof(v4l2_format{}))
	VIDIOC_REQBUFS         = ioc(iocRead|iocWrite, 8, unsafe.Sizeof(v4l2_requestbuffers{}))
	VIDIOC_QUERYBUF        = ioc(iocRead|iocWrite, 9, unsafe.Sizeof(v4l2_buffer{}))
	VIDIOC_QBUF            = ioc(iocRead|iocWrite, 15, unsafe.Sizeof(v4l2_buffer{}))
	VIDIOC_DQBUF           = ioc(iocRead|iocWrite, 17, unsafe.Sizeof(v4l2_buffer{}))
	VIDIOC_STREAMON        = ioc(iocWrite, 18, unsafe.Sizeof(int32(0)))
	VIDIOC_STREAMOFF       = ioc(iocWrite, 19, unsafe.Sizeof(int32(0)))
	VIDIOC_G_PARM          = ioc(iocRead|iocWrite, 21, unsafe.Sizeof(v4l2_streamparm{}))
	VIDIOC_S_PARM          = ioc(iocRead|iocWrite, 22, unsafe.Sizeof(v4l2_streamparm{}))
	VIDIOC_ENUM_FRAMESIZES = ioc(iocRead|iocWrite, 74, unsafe.Sizeof(v4l2_frmsizeenum{}))
)

func ioctl(fd int, request uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

func cstring(b []uint8) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
