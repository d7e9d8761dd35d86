// Package config loads the camsourced configuration file.
package config

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lanikai/camsource/internal/capture"
	"github.com/lanikai/camsource/internal/v4l2"
)

// Config is the complete daemon configuration.
type Config struct {
	Capture CaptureConfig  `yaml:"capture"`
	Devices []DeviceConfig `yaml:"devices"` // Empty means scan /dev/video*
	Preview PreviewConfig  `yaml:"preview"`
	Output  OutputConfig   `yaml:"output"`

	// Log level directives, as in LOGLEVEL (e.g. "info,v4l2=debug").
	LogLevel string `yaml:"log_level"`
}

// CaptureConfig holds the session parameters.
type CaptureConfig struct {
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	MinFPS   int    `yaml:"min_fps"`
	MaxFPS   int    `yaml:"max_fps"`   // 0: widest range the device offers
	Buffers  int    `yaml:"buffers"`   // raw callback buffers
	Paths    string `yaml:"paths"`     // texture, raw or both
	ZeroCopy bool   `yaml:"zero_copy"` // hand encoders the device buffer itself
	Rotation int    `yaml:"rotation"`  // device rotation in degrees
}

// DeviceConfig describes one camera.
type DeviceConfig struct {
	Path        string `yaml:"path"`
	Facing      string `yaml:"facing"` // front or back
	Orientation int    `yaml:"orientation"`
}

// PreviewConfig configures the websocket preview server.
type PreviewConfig struct {
	Listen string `yaml:"listen"` // Empty disables the server
	Path   string `yaml:"path"`
}

// OutputConfig configures the raw frame dump.
type OutputConfig struct {
	File string `yaml:"file"` // Empty disables the dump
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			Width:   1280,
			Height:  720,
			Buffers: 3,
			Paths:   "raw",
		},
		Preview: PreviewConfig{
			Path: "/preview",
		},
	}
}

// Load reads a YAML configuration file over the defaults and validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return cfg, nil
}

// Parse reads YAML configuration from r over the defaults and validates it.
// Unknown keys are an error.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "parse")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	cc := &c.Capture
	if cc.Width <= 0 || cc.Height <= 0 || cc.Width%2 != 0 || cc.Height%2 != 0 {
		return errors.Errorf("invalid frame size %dx%d (must be positive and even)", cc.Width, cc.Height)
	}
	if cc.MinFPS < 0 || cc.MaxFPS < cc.MinFPS {
		return errors.Errorf("invalid frame rate range %d-%d", cc.MinFPS, cc.MaxFPS)
	}
	if cc.Buffers < 1 {
		return errors.Errorf("invalid buffer count %d", cc.Buffers)
	}
	switch cc.Rotation {
	case 0, 90, 180, 270:
	default:
		return errors.Errorf("invalid rotation %d (want 0, 90, 180 or 270)", cc.Rotation)
	}
	if _, err := ParsePaths(cc.Paths); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for i, d := range c.Devices {
		if d.Path == "" {
			return errors.Errorf("device %d: no path", i)
		}
		if seen[d.Path] {
			return errors.Errorf("device %s listed twice", d.Path)
		}
		seen[d.Path] = true
		if _, err := ParseFacing(d.Facing); err != nil {
			return errors.Wrapf(err, "device %s", d.Path)
		}
		if d.Orientation < 0 || d.Orientation >= 360 {
			return errors.Errorf("device %s: orientation %d out of range [0, 360)", d.Path, d.Orientation)
		}
	}

	if c.Preview.Listen != "" && !strings.HasPrefix(c.Preview.Path, "/") {
		return errors.Errorf("preview path %q must start with /", c.Preview.Path)
	}
	// Preview clients are fed from a queue, so they hold frames after the
	// buffer has gone back to the device.
	if cc.ZeroCopy && c.Preview.Listen != "" {
		return errors.New("zero_copy cannot be combined with preview.listen")
	}
	return nil
}

// ParsePaths parses "texture", "raw" or "both".
func ParsePaths(s string) (capture.Paths, error) {
	switch strings.ToLower(s) {
	case "texture":
		return capture.PathTexture, nil
	case "raw":
		return capture.PathRaw, nil
	case "both", "":
		return capture.PathBoth, nil
	}
	return 0, errors.Errorf("invalid paths %q (want texture, raw or both)", s)
}

// ParseFacing parses "front" or "back". Empty means back.
func ParseFacing(s string) (capture.Facing, error) {
	switch strings.ToLower(s) {
	case "back", "":
		return capture.FacingBack, nil
	case "front":
		return capture.FacingFront, nil
	}
	return 0, errors.Errorf("invalid facing %q (want front or back)", s)
}

// V4L2Devices converts the device list. The configuration must be valid.
func (c *Config) V4L2Devices() []v4l2.DeviceConfig {
	var devices []v4l2.DeviceConfig
	for _, d := range c.Devices {
		facing, _ := ParseFacing(d.Facing)
		devices = append(devices, v4l2.DeviceConfig{
			Path:        d.Path,
			Facing:      facing,
			Orientation: d.Orientation,
		})
	}
	return devices
}

// String renders the configuration as YAML.
func (c *Config) String() string {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err.Error()
	}
	enc.Close()
	return buf.String()
}
