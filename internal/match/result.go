package match

import (
	"fmt"
	"image"

	"github.com/lkarlslund/aircv/pkg/geometry"
)

// Result is one located occurrence of a search image inside a source.
type Result struct {
	Point      geometry.Point `json:"result"`
	Rectangle  geometry.Quad  `json:"rectangle"`
	Confidence float64        `json:"confidence"`
}

func newResult(loc image.Point, w, h int, confidence float64) *Result {
	return &Result{
		Point:      geometry.Pt(loc.X+w/2, loc.Y+h/2),
		Rectangle:  geometry.QuadFromXYWH(loc.X, loc.Y, w, h),
		Confidence: confidence,
	}
}

// Offset returns a copy of r moved into the coordinate space of a parent
// image, where the searched sub-image started at p.
func (r Result) Offset(p geometry.Point) Result {
	r.Point = geometry.Translate(r.Point, p)
	r.Rectangle = r.Rectangle.Translate(p)
	return r
}

// Bounds returns the matched window.
func (r Result) Bounds() geometry.Rect {
	return r.Rectangle.Bounds()
}

func (r Result) String() string {
	return fmt.Sprintf("%v %v %.4f", r.Point, r.Bounds(), r.Confidence)
}

// OffsetAll applies Offset to every result in place.
func OffsetAll(results []Result, p geometry.Point) []Result {
	for i := range results {
		results[i] = results[i].Offset(p)
	}
	return results
}
