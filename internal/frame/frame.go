// Package frame holds the pixel buffer helpers shared by the matcher. A frame
// is a dense row-major gocv.Mat; nothing in here modifies its input, every
// crop and conversion returns a new Mat the caller must Close.
package frame

import (
	"fmt"
	"image"

	"github.com/disintegration/gift"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/pkg/geometry"
)

// Size returns the width and height of m.
func Size(m gocv.Mat) (int, int) {
	return m.Cols(), m.Rows()
}

// Bounds returns the full-frame rectangle of m.
func Bounds(m gocv.Mat) geometry.Rect {
	return geometry.R(0, 0, m.Cols(), m.Rows())
}

// FromBytes wraps a raw capture buffer. Channels may be 1 (gray), 3 (BGR)
// or 4 (BGRA, converted to BGR).
func FromBytes(width, height, channels int, pix []byte) (gocv.Mat, error) {
	var mt gocv.MatType
	switch channels {
	case 1:
		mt = gocv.MatTypeCV8UC1
	case 3:
		mt = gocv.MatTypeCV8UC3
	case 4:
		mt = gocv.MatTypeCV8UC4
	default:
		return gocv.NewMat(), fmt.Errorf("unsupported channel count %d", channels)
	}
	if width <= 0 || height <= 0 || len(pix) != width*height*channels {
		return gocv.NewMat(), fmt.Errorf("buffer of %d bytes does not hold %dx%dx%d pixels", len(pix), width, height, channels)
	}
	m, err := gocv.NewMatFromBytes(height, width, mt, pix)
	if err != nil {
		return m, err
	}
	if channels == 4 {
		bgr := gocv.NewMat()
		gocv.CvtColor(m, &bgr, gocv.ColorBGRAToBGR)
		m.Close()
		return bgr, nil
	}
	return m, nil
}

// FromImage converts any image.Image into a BGR Mat. Non-RGBA inputs are
// redrawn into RGBA first so paletted and gray sources convert the same way.
func FromImage(img image.Image) (gocv.Mat, error) {
	rgba, ok := img.(*image.RGBA)
	if !ok {
		g := gift.New()
		rgba = image.NewRGBA(g.Bounds(img.Bounds()))
		g.Draw(rgba, img)
	}
	return gocv.ImageToMatRGB(rgba)
}

// ToGray returns a single channel copy of m.
func ToGray(m gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	switch m.Channels() {
	case 1:
		m.CopyTo(&dst)
	case 4:
		gocv.CvtColor(m, &dst, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(m, &dst, gocv.ColorBGRToGray)
	}
	return dst
}

// ToBGR returns a three channel copy of m.
func ToBGR(m gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	switch m.Channels() {
	case 1:
		gocv.CvtColor(m, &dst, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(m, &dst, gocv.ColorBGRAToBGR)
	default:
		m.CopyTo(&dst)
	}
	return dst
}

// IsBlack reports whether every pixel of m is zero.
func IsBlack(m gocv.Mat) bool {
	if m.Empty() {
		return true
	}
	gray := ToGray(m)
	defer gray.Close()
	return gocv.CountNonZero(gray) == 0
}
