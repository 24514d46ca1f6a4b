// Package geometry provides the point, rectangle and resolution types shared by
// the matcher packages.
//
// Rectangles have one canonical representation, [x_min, y_min, x_max, y_max].
// Call sites that deal in [x, y, w, h] convert at the boundary with FromXYWH
// and Rect.XYWH.
package geometry

import (
	"encoding/json"
	"fmt"
	"image"
)

// Point is an integer pixel coordinate. It marshals as [x, y].
type Point struct {
	X int
	Y int
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// Add returns the elementwise sum of two points.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns the elementwise difference of two points.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// ImagePoint converts to image.Point.
func (p Point) ImagePoint() image.Point {
	return image.Pt(p.X, p.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var v [2]int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	p.X, p.Y = v[0], v[1]
	return nil
}

// PointF is a fractional coordinate, used for proportional record positions.
type PointF struct {
	X float64
	Y float64
}

func (p PointF) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

func (p *PointF) UnmarshalJSON(data []byte) error {
	var v [2]float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	p.X, p.Y = v[0], v[1]
	return nil
}

// Resolution is a screen size in pixels. The zero value means unknown and
// marshals as an empty array, matching stored scripts that write [].
type Resolution struct {
	Width  int
	Height int
}

// Res is shorthand for Resolution{Width: w, Height: h}.
func Res(w, h int) Resolution {
	return Resolution{Width: w, Height: h}
}

// IsZero reports whether the resolution is unset.
func (r Resolution) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

func (r Resolution) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("[]"), nil
	}
	return json.Marshal([2]int{r.Width, r.Height})
}

func (r *Resolution) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("resolution: %w", err)
	}
	switch len(v) {
	case 0:
		*r = Resolution{}
	case 2:
		r.Width, r.Height = v[0], v[1]
	default:
		return fmt.Errorf("resolution: expected 0 or 2 values, got %d", len(v))
	}
	return nil
}

// Rect is an axis-aligned rectangle [XMin, YMin, XMax, YMax]. XMax and YMax
// are exclusive when used to address pixels.
type Rect struct {
	XMin, YMin int
	XMax, YMax int
}

// R is shorthand for Rect{x0, y0, x1, y1}.
func R(x0, y0, x1, y1 int) Rect {
	return Rect{XMin: x0, YMin: y0, XMax: x1, YMax: y1}
}

// FromXYWH converts an [x, y, w, h] rectangle.
func FromXYWH(x, y, w, h int) Rect {
	return Rect{XMin: x, YMin: y, XMax: x + w, YMax: y + h}
}

// FromImageRect converts an image.Rectangle.
func FromImageRect(r image.Rectangle) Rect {
	return Rect{XMin: r.Min.X, YMin: r.Min.Y, XMax: r.Max.X, YMax: r.Max.Y}
}

// XYWH returns the rectangle as x, y, width, height.
func (r Rect) XYWH() (x, y, w, h int) {
	return r.XMin, r.YMin, r.XMax - r.XMin, r.YMax - r.YMin
}

func (r Rect) Dx() int {
	return r.XMax - r.XMin
}

func (r Rect) Dy() int {
	return r.YMax - r.YMin
}

// Area is Dx*Dy. It is negative for rectangles inverted on one axis.
func (r Rect) Area() int {
	return r.Dx() * r.Dy()
}

// Empty reports whether the rectangle has no pixels. Inverted rectangles
// are empty.
func (r Rect) Empty() bool {
	return r.XMin >= r.XMax || r.YMin >= r.YMax
}

// Min returns the top-left corner.
func (r Rect) Min() Point {
	return Point{X: r.XMin, Y: r.YMin}
}

// Canon returns the rectangle with min and max swapped where inverted.
func (r Rect) Canon() Rect {
	if r.XMin > r.XMax {
		r.XMin, r.XMax = r.XMax, r.XMin
	}
	if r.YMin > r.YMax {
		r.YMin, r.YMax = r.YMax, r.YMin
	}
	return r
}

// Contains reports whether o lies completely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.XMin >= r.XMin && o.YMin >= r.YMin && o.XMax <= r.XMax && o.YMax <= r.YMax
}

// Intersect returns the overlap of r and o. The result is Empty when they do
// not overlap.
func (r Rect) Intersect(o Rect) Rect {
	r.XMin = max(r.XMin, o.XMin)
	r.YMin = max(r.YMin, o.YMin)
	r.XMax = min(r.XMax, o.XMax)
	r.YMax = min(r.YMax, o.YMax)
	return r
}

// Translate offsets the rectangle by p.
func (r Rect) Translate(p Point) Rect {
	return Rect{XMin: r.XMin + p.X, YMin: r.YMin + p.Y, XMax: r.XMax + p.X, YMax: r.YMax + p.Y}
}

// ImageRect converts to image.Rectangle without canonicalizing.
func (r Rect) ImageRect() image.Rectangle {
	return image.Rectangle{Min: image.Pt(r.XMin, r.YMin), Max: image.Pt(r.XMax, r.YMax)}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", r.XMin, r.YMin, r.XMax, r.YMax)
}

func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{r.XMin, r.YMin, r.XMax, r.YMax})
}

func (r *Rect) UnmarshalJSON(data []byte) error {
	var v [4]int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("rect: %w", err)
	}
	r.XMin, r.YMin, r.XMax, r.YMax = v[0], v[1], v[2], v[3]
	return nil
}

// Quad holds the four corners of a matched window in the order
// top-left, bottom-left, bottom-right, top-right. It marshals as an array of
// four points.
type Quad [4]Point

// QuadFromXYWH builds the corner list for the window at (x, y) of size w*h.
func QuadFromXYWH(x, y, w, h int) Quad {
	return Quad{
		{X: x, Y: y},
		{X: x, Y: y + h},
		{X: x + w, Y: y + h},
		{X: x + w, Y: y},
	}
}

func (q Quad) TopLeft() Point     { return q[0] }
func (q Quad) BottomLeft() Point  { return q[1] }
func (q Quad) BottomRight() Point { return q[2] }
func (q Quad) TopRight() Point    { return q[3] }

// Bounds returns the rectangle spanned by the top-left and bottom-right corners.
func (q Quad) Bounds() Rect {
	return Rect{XMin: q[0].X, YMin: q[0].Y, XMax: q[2].X, YMax: q[2].Y}
}

// Translate offsets every corner by p.
func (q Quad) Translate(p Point) Quad {
	for i := range q {
		q[i] = q[i].Add(p)
	}
	return q
}
