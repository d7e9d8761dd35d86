package capture

// Matrix is a 4x4 texture transform in column-major order, as used by GL.
type Matrix [16]float32

func IdentityMatrix() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// HorizontalFlipMatrix maps texture coordinate x to 1-x.
func HorizontalFlipMatrix() Matrix {
	return Matrix{
		-1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		1, 0, 0, 1,
	}
}

// Multiply returns a*b.
func Multiply(a, b Matrix) Matrix {
	var r Matrix
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[k*4+row] * b[col*4+k]
			}
			r[col*4+row] = sum
		}
	}
	return r
}

// Apply transforms the point (x, y, 0, 1) and returns the resulting x and y.
func (m Matrix) Apply(x, y float32) (float32, float32) {
	return m[0]*x + m[4]*y + m[12], m[1]*x + m[5]*y + m[13]
}
