package v4l2

// Pixel format four character codes.
const (
	V4L2_PIX_FMT_NV21 = 'N' | 'V'<<8 | '2'<<16 | '1'<<24
	V4L2_PIX_FMT_YUYV = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
)

// FourCC renders a pixel format code, e.g. "NV21".
func FourCC(code uint32) string {
	return string([]byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)})
}
