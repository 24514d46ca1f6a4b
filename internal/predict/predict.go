// Package predict narrows a frame to the area around where a template was
// tapped when it was recorded.
package predict

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/internal/frame"
	"github.com/lkarlslund/aircv/pkg/geometry"
)

// Default search radius around the predicted point, in pixels.
const (
	DefaultRadiusX = 250
	DefaultRadiusY = 250
)

// ErrPredictedAreaEmpty means the predicted rectangle collapsed to zero
// width or height after clamping to the frame.
var ErrPredictedAreaEmpty = errors.New("predicted area is empty")

// Policy selects how a proportional record position maps to pixels.
type Policy int

const (
	// Asymmetric scales the y offset by the screen width. Existing recorded
	// scripts were tuned against this, so it is the default.
	Asymmetric Policy = iota
	// Symmetric scales each axis by its own dimension.
	Symmetric
)

// Center converts a record position, expressed as a fraction of the screen
// relative to its center, into absolute pixel coordinates on res.
func Center(res geometry.Resolution, pos geometry.PointF, policy Policy) (float64, float64) {
	rx, ry := float64(res.Width), float64(res.Height)
	x := pos.X*rx + 0.5*rx
	y := pos.Y*rx + 0.5*ry
	if policy == Symmetric {
		y = pos.Y*ry + 0.5*ry
	}
	return x, y
}

// Area returns the unclamped search rectangle around the predicted point.
func Area(res geometry.Resolution, pos geometry.PointF, radiusX, radiusY int, policy Policy) geometry.Rect {
	x, y := Center(res, pos, policy)
	return geometry.R(
		int(math.Floor(x-float64(radiusX))),
		int(math.Floor(y-float64(radiusY))),
		int(math.Floor(x+float64(radiusX))),
		int(math.Floor(y+float64(radiusY))),
	)
}

// Region crops the predicted area out of src and returns it with its top-left
// offset in src. A zero live resolution means the frame's own size.
func Region(src gocv.Mat, live geometry.Resolution, pos geometry.PointF, radiusX, radiusY int, policy Policy) (gocv.Mat, geometry.Point, error) {
	if live.IsZero() {
		w, h := frame.Size(src)
		live = geometry.Res(w, h)
	}
	return Crop(src, Area(live, pos, radiusX, radiusY, policy))
}

// Crop clamps area to src and copies it out. A crop that degenerates to no
// pixels is reported as ErrPredictedAreaEmpty.
func Crop(src gocv.Mat, area geometry.Rect) (gocv.Mat, geometry.Point, error) {
	sub, offset := frame.Crop(src, area)
	log.Debug().Stringer("area", area).Stringer("offset", offset).Msg("predicted area")
	if sub.Empty() {
		sub.Close()
		return gocv.NewMat(), offset, fmt.Errorf("%v: %w", area, ErrPredictedAreaEmpty)
	}
	return sub, offset, nil
}
