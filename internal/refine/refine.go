// Package refine recomputes a match confidence for templates that declare
// ignore or focus rectangles.
//
// Rectangles are given in the pixel space of the original, unscaled template.
// Every piece cut from the template goes through the same resize as the whole
// template before it is correlated against the located window.
package refine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lkarlslund/aircv/internal/frame"
	"github.com/lkarlslund/aircv/internal/match"
	"github.com/lkarlslund/aircv/pkg/geometry"
)

// ErrNoValidRegions means there was no area left to weight confidences by.
// It points at a malformed template, not at a transient condition.
var ErrNoValidRegions = errors.New("no valid regions to weight")

// Scaler resizes a template piece to the live resolution. It returns a new
// Mat the caller owns.
type Scaler func(piece gocv.Mat) (gocv.Mat, error)

// Mask returns a w*h single channel mask, 255 everywhere except inside the
// ignore rectangles.
func Mask(w, h int, ignore []geometry.Rect) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), h, w, gocv.MatTypeCV8UC1)
	canvas := geometry.R(0, 0, w, h)
	for _, r := range ignore {
		r = r.Intersect(canvas)
		if r.Empty() {
			continue
		}
		region := mask.Region(r.ImageRect())
		region.SetTo(gocv.NewScalar(0, 0, 0, 0))
		region.Close()
	}
	return mask
}

// AtomicRects partitions the w*h template along every distinct x and y edge
// of the given rectangles plus the template's own edges. Cells come out in
// row-major order.
func AtomicRects(w, h int, rects []geometry.Rect) []geometry.Rect {
	xs := map[int]bool{0: true, w: true}
	ys := map[int]bool{0: true, h: true}
	for _, r := range rects {
		for _, x := range []int{r.XMin, r.XMax} {
			xs[min(max(x, 0), w)] = true
		}
		for _, y := range []int{r.YMin, r.YMax} {
			ys[min(max(y, 0), h)] = true
		}
	}
	xl, yl := sortedKeys(xs), sortedKeys(ys)

	var cells []geometry.Rect
	for j := 0; j+1 < len(yl); j++ {
		for i := 0; i+1 < len(xl); i++ {
			cells = append(cells, geometry.R(xl[i], yl[j], xl[i+1], yl[j+1]))
		}
	}
	return cells
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Visible returns the atomic cells of a w*h template that are not fully
// covered by a single ignore rectangle. Degenerate cells are dropped.
func Visible(w, h int, ignore []geometry.Rect) []geometry.Rect {
	var out []geometry.Rect
cells:
	for _, cell := range AtomicRects(w, h, ignore) {
		if cell.Empty() {
			continue
		}
		for _, r := range ignore {
			if r.Contains(cell) {
				continue cells
			}
		}
		out = append(out, cell)
	}
	return out
}

// WeightedConfidence is sum(area*confidence)/sum(area).
func WeightedConfidence(areas, confidences []float64) (float64, error) {
	if len(areas) != len(confidences) {
		return 0, fmt.Errorf("%d areas for %d confidences", len(areas), len(confidences))
	}
	if len(areas) == 0 || floats.Sum(areas) == 0 {
		return 0, ErrNoValidRegions
	}
	return stat.Mean(confidences, areas), nil
}

// OutsideIgnore scores the located window against every part of the template
// not covered by an ignore rectangle and returns the area-weighted average.
func OutsideIgnore(target, template gocv.Mat, ignore []geometry.Rect, scale Scaler, rgb bool) (float64, error) {
	w, h := frame.Size(template)
	c, err := piecewise(target, template, Visible(w, h, ignore), scale, rgb)
	if err != nil {
		return 0, fmt.Errorf("outside ignore: %w", err)
	}
	return c, nil
}

// OnlyInFocus scores the located window against each focus rectangle of the
// template and returns the area-weighted average.
func OnlyInFocus(target, template gocv.Mat, focus []geometry.Rect, scale Scaler, rgb bool) (float64, error) {
	c, err := piecewise(target, template, focus, scale, rgb)
	if err != nil {
		return 0, fmt.Errorf("only in focus: %w", err)
	}
	return c, nil
}

func piecewise(target, template gocv.Mat, rects []geometry.Rect, scale Scaler, rgb bool) (float64, error) {
	var areas, confidences []float64
	canvas := frame.Bounds(template)
	for _, r := range rects {
		r = r.Intersect(canvas)
		if r.Empty() {
			continue
		}
		c, ok, err := pieceConfidence(target, template, r, scale, rgb)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		// weights use the unscaled area; only the ratios matter
		areas = append(areas, float64(r.Area()))
		confidences = append(confidences, c)
	}
	c, err := WeightedConfidence(areas, confidences)
	if err != nil {
		return 0, err
	}
	log.Debug().Int("pieces", len(areas)).Float64("confidence", c).Msg("refined confidence")
	return c, nil
}

func pieceConfidence(target, template gocv.Mat, r geometry.Rect, scale Scaler, rgb bool) (float64, bool, error) {
	piece := frame.Window(template, r)
	defer piece.Close()
	scaled, err := scale(piece)
	defer scaled.Close()
	if errors.Is(err, frame.ErrInvalidSize) {
		// the piece vanished at the live resolution
		log.Debug().Stringer("rect", r).Msg("skipping piece scaled to nothing")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	res, err := match.Best(target, scaled, match.Options{RGB: rgb})
	if err != nil {
		return 0, false, err
	}
	if res == nil {
		return 0, true, nil
	}
	return res.Confidence, true, nil
}
