package v4l2

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/camsource/internal/capture"
)

type fakeNodes struct {
	infos  map[string]*deviceInfo
	probes map[string]int
	opened []string
}

func (f *fakeNodes) probe(path string) (*deviceInfo, error) {
	f.probes[path]++
	info, ok := f.infos[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return info, nil
}

func (f *fakeNodes) open(path string, info *deviceInfo) (capture.Device, error) {
	f.opened = append(f.opened, path)
	return nil, nil
}

func newFakeEnumerator(t *testing.T, devices []DeviceConfig, names ...string) (*Enumerator, *fakeNodes, string) {
	dir := t.TempDir()

	f := &fakeNodes{infos: map[string]*deviceInfo{}, probes: map[string]int{}}
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, nil, 0644))
	}

	e := NewEnumerator(devices)
	e.pattern = filepath.Join(dir, "video*")
	e.probe = f.probe
	e.open = f.open
	return e, f, dir
}

func TestScanSkipsNonCaptureNodes(t *testing.T) {
	e, f, dir := newFakeEnumerator(t, nil, "video0", "video1", "video2")
	f.infos[filepath.Join(dir, "video0")] = &deviceInfo{capture: true}
	f.infos[filepath.Join(dir, "video1")] = &deviceInfo{capture: false, card: "metadata"}

	cams, err := e.Cameras()
	require.NoError(t, err)
	assert.Equal(t, []capture.CameraInfo{{Facing: capture.FacingBack}}, cams)

	_, err = e.Open(0)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "video0")}, f.opened)

	_, err = e.Open(1)
	assert.Error(t, err)
}

func TestProbeResultsAreCached(t *testing.T) {
	e, f, dir := newFakeEnumerator(t, nil, "video0", "video1")
	f.infos[filepath.Join(dir, "video0")] = &deviceInfo{capture: true}

	for i := 0; i < 3; i++ {
		_, err := e.Cameras()
		require.NoError(t, err)
	}
	_, err := e.Open(0)
	require.NoError(t, err)

	assert.Equal(t, 1, f.probes[filepath.Join(dir, "video0")])
	// Failures are retried.
	assert.Equal(t, 3, f.probes[filepath.Join(dir, "video1")])
}

func TestConfiguredDevices(t *testing.T) {
	e, f, _ := newFakeEnumerator(t, []DeviceConfig{
		{Path: "/dev/video4", Facing: capture.FacingFront, Orientation: 270},
		{Path: "/dev/video0"},
	})
	f.infos["/dev/video4"] = &deviceInfo{capture: true}

	cams, err := e.Cameras()
	require.NoError(t, err)
	assert.Equal(t, []capture.CameraInfo{
		{Facing: capture.FacingFront, Orientation: 270},
		{Facing: capture.FacingBack, Orientation: 0},
	}, cams)

	_, err = e.Open(0)
	require.NoError(t, err)
	_, err = e.Open(1)
	assert.Error(t, err)
	assert.Equal(t, []string{"/dev/video4"}, f.opened)
}

func TestOpenBeforeCameras(t *testing.T) {
	e, _, _ := newFakeEnumerator(t, nil)
	_, err := e.Open(0)
	assert.Error(t, err)
}

// A format the enumerator does not deliver.
const fourccMJPG = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24

func TestCapabilities(t *testing.T) {
	info := &deviceInfo{fourccs: []uint32{fourccMJPG, V4L2_PIX_FMT_YUYV}}
	info.addSize(capture.Size{Width: 640, Height: 480})
	info.addSize(capture.Size{Width: 1280, Height: 720})
	info.addSize(capture.Size{Width: 640, Height: 480})

	caps := info.capabilities()
	assert.Equal(t, []capture.PixelFormat{capture.PixelFormatNV21}, caps.Formats)
	assert.Len(t, caps.PreviewSizes, 2)

	info = &deviceInfo{fourccs: []uint32{fourccMJPG}}
	assert.Empty(t, info.capabilities().Formats)
}

func TestFourCC(t *testing.T) {
	assert.Equal(t, "NV21", FourCC(V4L2_PIX_FMT_NV21))
	assert.Equal(t, "YUYV", FourCC(V4L2_PIX_FMT_YUYV))
	assert.Equal(t, "MJPG", FourCC(fourccMJPG))
	assert.Equal(t, uint32(0x3132564e), uint32(V4L2_PIX_FMT_NV21))
}
