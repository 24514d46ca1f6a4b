// Package debugdraw annotates screens with match results for inspection.
package debugdraw

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/internal/match"
	"github.com/lkarlslund/aircv/pkg/geometry"
)

var (
	Found  = color.RGBA{0, 255, 0, 0}
	Missed = color.RGBA{255, 0, 0, 0}
	Target = color.RGBA{0, 0, 255, 0}
)

// Result draws r's rectangle onto img with its confidence and name.
func Result(img *gocv.Mat, r match.Result, name string, col color.RGBA) {
	rect := r.Bounds().ImageRect()
	gocv.Rectangle(img, rect, col, 2)
	gocv.PutText(img, fmt.Sprintf("%.2f %v", r.Confidence, name), rect.Min.Add(image.Pt(4, 12)), gocv.FontHersheyPlain, 1, col, 2)
}

// Point marks p with a filled dot.
func Point(img *gocv.Mat, p geometry.Point, col color.RGBA) {
	gocv.Circle(img, p.ImagePoint(), 5, col, -1)
}

// Area outlines a searched region, such as a predicted area, thinly.
func Area(img *gocv.Mat, r geometry.Rect, col color.RGBA) {
	gocv.Rectangle(img, r.ImageRect(), col, 1)
}

// Results returns an annotated copy of screen. Results at or above threshold
// are drawn as found, the rest as missed.
func Results(screen gocv.Mat, results []match.Result, name string, threshold float64) gocv.Mat {
	out := screen.Clone()
	for _, r := range results {
		col := Found
		if r.Confidence < threshold {
			col = Missed
		}
		Result(&out, r, name, col)
		Point(&out, r.Point, Target)
	}
	return out
}

// Window shows annotated frames in a native window, the way a live capture
// loop inspects its matches.
type Window struct {
	w *gocv.Window
}

func NewWindow(title string) *Window {
	return &Window{w: gocv.NewWindow(title)}
}

// Show displays img and reports whether escape was pressed.
func (w *Window) Show(img gocv.Mat) bool {
	w.w.IMShow(img)
	return w.w.WaitKey(5) == 27
}

func (w *Window) Close() error {
	return w.w.Close()
}
