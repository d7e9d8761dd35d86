package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameOrientationExamples(t *testing.T) {
	assert.Equal(t, 180, FrameOrientation(90, CameraInfo{Facing: FacingFront, Orientation: 270}))
	assert.Equal(t, 90, FrameOrientation(0, CameraInfo{Facing: FacingBack, Orientation: 90}))
}

func TestFrameOrientationTable(t *testing.T) {
	cases := []struct {
		rotation int
		info     CameraInfo
		want     int
	}{
		{0, CameraInfo{FacingBack, 0}, 0},
		{90, CameraInfo{FacingBack, 90}, 180},
		{270, CameraInfo{FacingBack, 90}, 0},
		{180, CameraInfo{FacingBack, 270}, 90},
		{0, CameraInfo{FacingFront, 270}, 270},
		{90, CameraInfo{FacingFront, 90}, 0},
		{180, CameraInfo{FacingFront, 270}, 90},
		{270, CameraInfo{FacingFront, 270}, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FrameOrientation(c.rotation, c.info), "%+v", c)
	}
}

func TestFrameOrientationRange(t *testing.T) {
	for _, facing := range []Facing{FacingBack, FacingFront} {
		for mount := 0; mount < 360; mount += 90 {
			for rotation := 0; rotation < 360; rotation += 90 {
				info := CameraInfo{facing, mount}
				got := FrameOrientation(rotation, info)
				assert.True(t, got >= 0 && got < 360, "%d out of range", got)
				assert.Equal(t, got, FrameOrientation(rotation, info))
			}
		}
	}
}

func TestSurfaceRotationDegrees(t *testing.T) {
	assert.Equal(t, 0, SurfaceRotationDegrees(0))
	assert.Equal(t, 90, SurfaceRotationDegrees(1))
	assert.Equal(t, 180, SurfaceRotationDegrees(2))
	assert.Equal(t, 270, SurfaceRotationDegrees(3))
	assert.Equal(t, 0, SurfaceRotationDegrees(7))
}

func TestMirrorMatrix(t *testing.T) {
	assert.Equal(t, HorizontalFlipMatrix(), Multiply(IdentityMatrix(), HorizontalFlipMatrix()))
	assert.Equal(t, IdentityMatrix(), Multiply(HorizontalFlipMatrix(), HorizontalFlipMatrix()))

	x, y := HorizontalFlipMatrix().Apply(0.25, 0.75)
	assert.InDelta(t, 0.75, x, 1e-6)
	assert.InDelta(t, 0.75, y, 1e-6)
}
