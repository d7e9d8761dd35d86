package capture

// RotationSource reports the current device rotation in degrees, one of
// 0, 90, 180 or 270. It is queried once per delivered frame.
type RotationSource interface {
	DeviceRotation() int
}

// RotationFunc adapts a function to a RotationSource.
type RotationFunc func() int

func (f RotationFunc) DeviceRotation() int {
	return f()
}

// FixedRotation is a RotationSource for devices that never rotate.
type FixedRotation int

func (r FixedRotation) DeviceRotation() int {
	return int(r)
}

// SurfaceRotationDegrees converts a display rotation index (0-3, counted in
// quarter turns) to degrees. Unknown values count as 0.
func SurfaceRotationDegrees(surfaceRotation int) int {
	switch surfaceRotation {
	case 1:
		return 90
	case 2:
		return 180
	case 3:
		return 270
	default:
		return 0
	}
}

// FrameOrientation returns the clockwise rotation, in [0,360), that must be
// applied to a captured frame to display it upright.
//
// A front-facing sensor is mounted mirrored, so device rotation is applied in
// the opposite direction.
func FrameOrientation(deviceRotation int, info CameraInfo) int {
	rotation := deviceRotation
	if info.Facing == FacingFront {
		rotation = 360 - rotation
	}
	return mod360(info.Orientation + rotation)
}

func mod360(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
