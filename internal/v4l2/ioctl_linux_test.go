//go:build linux
// +build linux

package v4l2

import (
	"testing"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/lanikai/camsource/internal/capture"
)

func TestStructSizes(t *testing.T) {
	assert.EqualValues(t, 104, unsafe.Sizeof(v4l2_capability{}))
	assert.EqualValues(t, 64, unsafe.Sizeof(v4l2_fmtdesc{}))
	assert.EqualValues(t, 48, unsafe.Sizeof(v4l2_pix_format{}))
	assert.EqualValues(t, 44, unsafe.Sizeof(v4l2_frmsizeenum{}))
	assert.EqualValues(t, 20, unsafe.Sizeof(v4l2_requestbuffers{}))
	assert.EqualValues(t, 204, unsafe.Sizeof(v4l2_streamparm{}))
	assert.EqualValues(t, 40, unsafe.Sizeof(v4l2_captureparm{}))

	if ptrSize == 8 {
		assert.EqualValues(t, 208, unsafe.Sizeof(v4l2_format{}))
		assert.EqualValues(t, 88, unsafe.Sizeof(v4l2_buffer{}))
		assert.EqualValues(t, 64, unsafe.Offsetof(v4l2_buffer{}.m))
	}
}

func TestIoctlNumbers(t *testing.T) {
	assert.Equal(t, uintptr(0x80685600), VIDIOC_QUERYCAP)
	assert.Equal(t, uintptr(0xc0405602), VIDIOC_ENUM_FMT)
	assert.Equal(t, uintptr(0xc0145608), VIDIOC_REQBUFS)
	assert.Equal(t, uintptr(0x40045612), VIDIOC_STREAMON)
	assert.Equal(t, uintptr(0x40045613), VIDIOC_STREAMOFF)
	assert.Equal(t, uintptr(0xc0cc5615), VIDIOC_G_PARM)
	assert.Equal(t, uintptr(0xc0cc5616), VIDIOC_S_PARM)
	assert.Equal(t, uintptr(0xc02c564a), VIDIOC_ENUM_FRAMESIZES)

	if ptrSize == 8 {
		assert.Equal(t, uintptr(0xc0d05604), VIDIOC_G_FMT)
		assert.Equal(t, uintptr(0xc0d05605), VIDIOC_S_FMT)
		assert.Equal(t, uintptr(0xc0585609), VIDIOC_QUERYBUF)
		assert.Equal(t, uintptr(0xc058560f), VIDIOC_QBUF)
		assert.Equal(t, uintptr(0xc0585611), VIDIOC_DQBUF)
	}
}

func TestPixFormatOverlay(t *testing.T) {
	f := v4l2_format{typ: V4L2_BUF_TYPE_VIDEO_CAPTURE}
	f.pix().width = 640
	f.pix().pixelformat = V4L2_PIX_FMT_NV21
	assert.EqualValues(t, 640, *(*uint32)(unsafe.Pointer(&f.fmt[0])))
	assert.Equal(t, "NV21", FourCC(f.pix().pixelformat))
}

func TestCopyPlanes(t *testing.T) {
	// 2x2 NV21 with 4-byte row stride: 2 luma rows + 1 chroma row.
	src := []byte{
		1, 2, 0, 0,
		3, 4, 0, 0,
		5, 6, 0, 0,
	}
	dst := make([]byte, 6)
	copyPlanes(dst, src, 2, 2, 4)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, dst)
}

func TestCString(t *testing.T) {
	assert.Equal(t, "uvcvideo", cstring([]byte("uvcvideo\x00\x00junk")))
	assert.Equal(t, "abc", cstring([]byte("abc")))
}

func TestNegotiateRate(t *testing.T) {
	dev := &device{path: "/dev/video9"}

	var asked []int
	set := func(fps int) (int, error) {
		asked = append(asked, fps)
		return 25, nil
	}
	assert.Equal(t, capture.FPSRange{Min: 25, Max: 25}, dev.negotiateRate(capture.FPSRange{Min: 15, Max: 30}, set))
	assert.Equal(t, []int{30}, asked)

	// Nothing requested: the driver is not asked.
	assert.Equal(t, capture.FPSRange{}, dev.negotiateRate(capture.FPSRange{}, set))
	assert.Len(t, asked, 1)

	// Without frame rate control the rate is unknown, not the request.
	unsupported := func(int) (int, error) { return 0, errors.New("frame rate control not supported") }
	assert.Equal(t, capture.FPSRange{}, dev.negotiateRate(capture.FPSRange{Min: 15, Max: 30}, unsupported))

	noReadback := func(int) (int, error) { return 0, nil }
	assert.Equal(t, capture.FPSRange{}, dev.negotiateRate(capture.FPSRange{Max: 30}, noReadback))
}
