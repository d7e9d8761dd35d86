package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/camsource/internal/capture"
	"github.com/lanikai/camsource/internal/v4l2"
)

const sample = `
capture:
  width: 640
  height: 480
  max_fps: 30
  buffers: 4
  paths: raw
  zero_copy: true
  rotation: 90
devices:
  - path: /dev/video2
    facing: front
    orientation: 270
  - path: /dev/video0
preview:
  listen: ":8000"
output:
  file: /tmp/frames.nv21
log_level: "info,v4l2=debug"
`

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, CaptureConfig{
		Width:    640,
		Height:   480,
		MaxFPS:   30,
		Buffers:  4,
		Paths:    "raw",
		ZeroCopy: true,
		Rotation: 90,
	}, cfg.Capture)
	assert.Equal(t, ":8000", cfg.Preview.Listen)
	assert.Equal(t, "/preview", cfg.Preview.Path, "defaults survive partial sections")
	assert.Equal(t, "/tmp/frames.nv21", cfg.Output.File)
	assert.Equal(t, "info,v4l2=debug", cfg.LogLevel)

	assert.Equal(t, []v4l2.DeviceConfig{
		{Path: "/dev/video2", Facing: capture.FacingFront, Orientation: 270},
		{Path: "/dev/video0", Facing: capture.FacingBack},
	}, cfg.V4L2Devices())
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("capture:\n  widht: 640\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"odd width":       func(c *Config) { c.Capture.Width = 641 },
		"zero height":     func(c *Config) { c.Capture.Height = 0 },
		"fps range":       func(c *Config) { c.Capture.MinFPS, c.Capture.MaxFPS = 30, 15 },
		"no buffers":      func(c *Config) { c.Capture.Buffers = 0 },
		"bad paths":       func(c *Config) { c.Capture.Paths = "sideways" },
		"device no path":  func(c *Config) { c.Devices = []DeviceConfig{{}} },
		"duplicate":       func(c *Config) { c.Devices = []DeviceConfig{{Path: "/dev/video0"}, {Path: "/dev/video0"}} },
		"bad facing":      func(c *Config) { c.Devices = []DeviceConfig{{Path: "/dev/video0", Facing: "up"}} },
		"relative prefix": func(c *Config) { c.Preview = PreviewConfig{Listen: ":80", Path: "ws"} },
		"rotation 45":     func(c *Config) { c.Capture.Rotation = 45 },
		"rotation -90":    func(c *Config) { c.Capture.Rotation = -90 },
		"rotation 360":    func(c *Config) { c.Capture.Rotation = 360 },
		"orientation":     func(c *Config) { c.Devices = []DeviceConfig{{Path: "/dev/video0", Orientation: 360}} },
	} {
		cfg := Default()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
	assert.NoError(t, Default().Validate())
}

func TestParsePaths(t *testing.T) {
	for s, want := range map[string]capture.Paths{
		"texture": capture.PathTexture,
		"RAW":     capture.PathRaw,
		"both":    capture.PathBoth,
		"":        capture.PathBoth,
	} {
		got, err := ParsePaths(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsourced.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Capture.Width)

	// Round trip through String.
	again, err := Parse(strings.NewReader(cfg.String()))
	require.NoError(t, err)
	assert.Equal(t, cfg, again)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestValidateRotation(t *testing.T) {
	for _, r := range []int{0, 90, 180, 270} {
		cfg := Default()
		cfg.Capture.Rotation = r
		assert.NoError(t, cfg.Validate(), r)
	}
}

func TestZeroCopyWithPreview(t *testing.T) {
	// Preview clients queue frames; with zero copy those would be device
	// buffers that are refilled underneath them.
	_, err := Parse(strings.NewReader("capture: {zero_copy: true}\npreview: {listen: ':8080'}\n"))
	assert.Error(t, err)

	// Writing to a file doesn't keep the frame, so zero copy is fine.
	cfg, err := Parse(strings.NewReader("capture: {zero_copy: true}\noutput: {file: /tmp/frames.nv21}\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Capture.ZeroCopy)

	cfg, err = Parse(strings.NewReader("preview: {listen: ':8080'}\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Capture.ZeroCopy)
}
