package v4l2

import (
	"github.com/lanikai/camsource/internal/capture"
)

// DeviceConfig describes one video node. V4L2 reports neither which way a
// camera faces nor how it is mounted, so both come from configuration.
type DeviceConfig struct {
	Path        string         // Device path, e.g. "/dev/video0"
	Facing      capture.Facing // Default: capture.FacingBack
	Orientation int            // Mount orientation in degrees
}
