package frame

import (
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/pkg/geometry"
)

// Crop copies the pixels [YMin:YMax, XMin:XMax] of src after clamping r to
// the frame, and returns the clamped top-left corner as the offset.
//
// A rectangle that degenerates to zero width or height (or stays inverted)
// yields an empty Mat. That is a signal for the caller, not a failure.
func Crop(src gocv.Mat, r geometry.Rect) (gocv.Mat, geometry.Point) {
	w, h := Size(src)
	c := geometry.ClampRect(r, w, h)
	offset := c.Min()
	if c.Empty() {
		return gocv.NewMat(), offset
	}
	region := src.Region(c.ImageRect())
	defer region.Close()
	return region.Clone(), offset
}

// CropXYWH is Crop for callers holding an [x, y, w, h] rectangle.
func CropXYWH(src gocv.Mat, x, y, w, h int) (gocv.Mat, geometry.Point) {
	return Crop(src, geometry.FromXYWH(x, y, w, h))
}

// Window copies the window r out of src without clamping. r must already lie
// inside src; it is used for windows the matcher itself produced.
func Window(src gocv.Mat, r geometry.Rect) gocv.Mat {
	region := src.Region(r.ImageRect())
	defer region.Close()
	return region.Clone()
}
