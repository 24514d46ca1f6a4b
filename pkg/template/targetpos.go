package template

import (
	"github.com/lkarlslund/aircv/internal/match"
	"github.com/lkarlslund/aircv/pkg/geometry"
)

// TargetPos selects which point of a matched rectangle to act on, laid out
// like a numeric keypad:
//
//	1 2 3
//	4 5 6
//	7 8 9
//
// 0 and 5 both mean the center.
type TargetPos int

const (
	Center    TargetPos = 0
	LeftUp    TargetPos = 1
	Up        TargetPos = 2
	RightUp   TargetPos = 3
	Left      TargetPos = 4
	Mid       TargetPos = 5
	Right     TargetPos = 6
	LeftDown  TargetPos = 7
	Down      TargetPos = 8
	RightDown TargetPos = 9
)

func (p TargetPos) Valid() bool {
	return p >= 0 && p <= 9
}

// Point returns the selected point of r.
func (p TargetPos) Point(r match.Result) geometry.Point {
	q := r.Rectangle
	w := q.BottomRight().X - q.TopLeft().X
	h := q.BottomRight().Y - q.TopLeft().Y
	switch p {
	case LeftUp:
		return q.TopLeft()
	case LeftDown:
		return q.BottomLeft()
	case RightDown:
		return q.BottomRight()
	case RightUp:
		return q.TopRight()
	case Left:
		return geometry.Pt(q.TopLeft().X, q.TopLeft().Y+h/2)
	case Up:
		return geometry.Pt(q.TopLeft().X+w/2, q.TopLeft().Y)
	case Right:
		return geometry.Pt(q.BottomRight().X, q.BottomRight().Y-h/2)
	case Down:
		return geometry.Pt(q.BottomRight().X-w/2, q.BottomRight().Y)
	}
	return r.Point
}
