// Copyright 2019 Lanikai Labs. All rights reserved.

package color

import (
	"image"

	errors "golang.org/x/xerrors"
)

type YUYV struct {
	Packed []uint8
	Rect   image.Rectangle
	Stride int
}

// NewYUYV allocates and returns a YUYV image
func NewYUYV(r image.Rectangle) *YUYV {
	return &YUYV{
		Packed: make([]byte, 2*r.Dx()*r.Dy()),
		Rect:   r,
		Stride: 2 * r.Dx(),
	}
}

// NV21Size is the number of bytes in a w x h NV21 image: a full resolution
// luma plane followed by an interleaved V/U plane at quarter resolution.
func NV21Size(w, h int) int {
	return w*h + 2*(w/2)*(h/2)
}

// YUYVToNV21 converts YUYV (i.e. YUY2) packed to NV21 semi-planar format.
// Chroma for each 2x2 block is taken from the block's top row. The image
// dimensions must be even.
func YUYVToNV21(dst []byte, src *YUYV) error {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w%2 != 0 || h%2 != 0 {
		return errors.Errorf("color: odd dimensions %dx%d", w, h)
	}
	if len(dst) < NV21Size(w, h) {
		return errors.Errorf("color: destination too small (%d < %d)", len(dst), NV21Size(w, h))
	}
	if len(src.Packed) < src.Stride*(h-1)+2*w {
		return errors.Errorf("color: source too small for %dx%d", w, h)
	}

	luma := dst[:w*h]
	chroma := dst[w*h:]

	for row := 0; row < h; row++ {
		in := src.Packed[row*src.Stride : row*src.Stride+2*w]
		out := luma[row*w : row*w+w]
		for col := 0; col < w; col++ {
			out[col] = in[2*col]
		}

		if row%2 != 0 {
			continue
		}
		vu := chroma[(row/2)*w : (row/2)*w+w]
		for i := 0; i < w/2; i++ {
			vu[2*i] = in[4*i+3]   // V (Cr)
			vu[2*i+1] = in[4*i+1] // U (Cb)
		}
	}
	return nil
}
