package capture

import (
	"time"

	errors "golang.org/x/xerrors"

	"github.com/lanikai/camsource/internal/logging"
)

const (
	defaultWidth      = 1280
	defaultHeight     = 720
	defaultNumBuffers = 3
)

// Config fixes the capture parameters and collaborators of a Session.
type Config struct {
	Width  int // Requested preview width in pixels (default 1280)
	Height int // Requested preview height in pixels (default 720)

	// Only PixelFormatNV21 is supported; zero means NV21.
	PixelFormat PixelFormat

	// Requested frame rate range. If both are zero the widest range the
	// device advertises is used.
	MinFPS, MaxFPS int

	// Number of raw callback buffers (default 3).
	NumBuffers int

	// Delivery paths to bind (default PathBoth).
	Paths Paths

	// If set, the encoder receives the callback buffer itself instead of a
	// copy. The encoder must then not retain the slice after AddFrameData
	// returns.
	ZeroCopy bool

	Cameras  Enumerator
	Rotation RotationSource  // Default: FixedRotation(0)
	Surface  SurfaceProvider // Required for the texture path
	Encoder  Encoder         // Required for the raw path, by Start
	Consumer TextureConsumer // Optional; may be set later with SetConsumer

	// Wall clock for texture frame timestamps (default time.Now).
	Clock func() time.Time

	Logger *logging.Logger
}

func (cfg *Config) applyDefaults() error {
	if cfg.Cameras == nil {
		return errors.New("capture: no camera enumerator")
	}
	if cfg.Width < 0 || cfg.Height < 0 {
		return errors.Errorf("capture: invalid size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width == 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height == 0 {
		cfg.Height = defaultHeight
	}
	if cfg.Width%2 != 0 || cfg.Height%2 != 0 {
		return errors.Errorf("capture: %dx%d is not a valid NV21 size", cfg.Width, cfg.Height)
	}
	switch cfg.PixelFormat {
	case 0:
		cfg.PixelFormat = PixelFormatNV21
	case PixelFormatNV21:
	default:
		return errors.Errorf("capture: requested %v: %w", cfg.PixelFormat, ErrUnsupportedFormat)
	}
	if cfg.MinFPS < 0 || cfg.MaxFPS < cfg.MinFPS {
		return errors.Errorf("capture: invalid frame rate range %d-%d", cfg.MinFPS, cfg.MaxFPS)
	}
	if cfg.NumBuffers < 0 {
		return errors.Errorf("capture: invalid buffer count %d", cfg.NumBuffers)
	}
	if cfg.NumBuffers == 0 {
		cfg.NumBuffers = defaultNumBuffers
	}
	if cfg.Paths == 0 {
		cfg.Paths = PathBoth
	}
	if cfg.Paths&^PathBoth != 0 {
		return errors.Errorf("capture: invalid paths %#x", uint8(cfg.Paths))
	}
	if cfg.Rotation == nil {
		cfg.Rotation = FixedRotation(0)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return nil
}
