// Package smartcrop guesses the bounds of the UI element under a tap so a
// recorder can capture a template without the user drawing a box.
//
// The result is a suggestion. Crop always returns pixels; when no contour
// contains the tap a fixed square around it is used instead.
package smartcrop

import (
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/internal/frame"
	"github.com/lkarlslund/aircv/pkg/geometry"
)

// EdgeOperator selects the gradient filter run before binarization.
type EdgeOperator string

const (
	Sobel     EdgeOperator = "sobel" // x direction
	SobelY    EdgeOperator = "sobel_y"
	SobelXY   EdgeOperator = "sobel_xy"
	Laplacian EdgeOperator = "laplacian"
	Canny     EdgeOperator = "canny"
)

var ErrEmptyImage = errors.New("image to crop is empty")

// Options hold the tunables of the pipeline. The zero value is not useful;
// start from DefaultOptions.
type Options struct {
	Operator EdgeOperator `json:"operator"`
	// Integral dilates twice with the first kernel and never erodes. It keeps
	// whole controls together at the cost of detail.
	Integral bool `json:"integral"`

	DilateKernel          int `json:"dilate_kernel"`
	ErodeKernel           int `json:"erode_kernel"`
	FinalDilateKernel     int `json:"final_dilate_kernel"`
	FinalDilateIterations int `json:"final_dilate_iterations"`

	MinArea  float64 `json:"min_area"`
	MinWidth int     `json:"min_width"`
	MaxWidth int     `json:"max_width"`
}

func DefaultOptions() Options {
	return Options{
		Operator:              Sobel,
		DilateKernel:          5,
		ErodeKernel:           6,
		FinalDilateKernel:     5,
		FinalDilateIterations: 3,
		MinArea:               400,
		MinWidth:              20,
		MaxWidth:              100,
	}
}

func (o Options) Validate() error {
	switch o.Operator {
	case Sobel, SobelY, SobelXY, Laplacian, Canny:
	default:
		return fmt.Errorf("unknown edge operator %q", o.Operator)
	}
	if o.DilateKernel <= 0 || o.ErodeKernel <= 0 || o.FinalDilateKernel <= 0 {
		return errors.New("morphology kernels must be positive")
	}
	if o.FinalDilateIterations <= 0 {
		return errors.New("final dilate iterations must be positive")
	}
	if o.MaxWidth <= 0 || o.MinWidth < 0 {
		return fmt.Errorf("bad crop widths min=%d max=%d", o.MinWidth, o.MaxWidth)
	}
	return nil
}

// Candidate is a contour that survived the area and aspect filters.
type Candidate struct {
	Rect geometry.Rect
	Area float64
}

// Crop returns the pixels of the element under tap and the rectangle they
// were cut from.
func Crop(img gocv.Mat, tap geometry.Point, opts Options) (gocv.Mat, geometry.Rect, error) {
	r, err := Locate(img, tap, opts)
	if err != nil {
		return gocv.NewMat(), geometry.Rect{}, err
	}
	sub, _ := frame.Crop(img, r)
	if sub.Empty() {
		sub.Close()
		return gocv.NewMat(), r, fmt.Errorf("crop %v: %w", r, ErrEmptyImage)
	}
	return sub, r, nil
}

// Locate runs the pipeline and returns the unclamped crop rectangle. A tap
// outside the image is moved to the nearest pixel inside it.
func Locate(img gocv.Mat, tap geometry.Point, opts Options) (geometry.Rect, error) {
	if img.Empty() {
		return geometry.Rect{}, ErrEmptyImage
	}
	tap = geometry.Pt(min(max(tap.X, 0), img.Cols()-1), min(max(tap.Y, 0), img.Rows()-1))
	if err := opts.Validate(); err != nil {
		return geometry.Rect{}, err
	}

	edges := Preprocess(img, opts)
	defer edges.Close()
	candidates := Candidates(edges, opts)

	half := opts.MaxWidth / 2
	best, ok := smallestContaining(candidates, tap)
	if !ok || best.Dx() <= opts.MinWidth || best.Dy() <= opts.MinWidth {
		r := geometry.FromXYWH(tap.X-half, tap.Y-half, opts.MaxWidth, opts.MaxWidth)
		log.Debug().Stringer("tap", tap).Stringer("rect", r).Msg("smart crop fallback")
		return r, nil
	}
	r := shrink(best, tap, opts.MaxWidth)
	log.Debug().Stringer("tap", tap).Stringer("contour", best).Stringer("rect", r).Msg("smart crop")
	return r, nil
}

// Preprocess turns img into a binary image where nearby edges are merged
// into solid blobs.
func Preprocess(img gocv.Mat, opts Options) gocv.Mat {
	gray := frame.ToGray(img)
	defer gray.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	switch opts.Operator {
	case Laplacian:
		gocv.Laplacian(gray, &edges, gocv.MatTypeCV8U, 1, 1, 0, gocv.BorderDefault)
	case SobelY:
		gocv.Sobel(gray, &edges, gocv.MatTypeCV8U, 0, 1, 3, 1, 0, gocv.BorderDefault)
	case SobelXY:
		gocv.Sobel(gray, &edges, gocv.MatTypeCV8U, 1, 1, 3, 1, 0, gocv.BorderDefault)
	case Canny:
		blurred := gocv.NewMat()
		gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
		gocv.Canny(blurred, &edges, 0, 255)
		blurred.Close()
	default:
		gocv.Sobel(gray, &edges, gocv.MatTypeCV8U, 1, 0, 3, 1, 0, gocv.BorderDefault)
	}

	binary := gocv.NewMat()
	gocv.Threshold(edges, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	first := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(opts.DilateKernel, opts.DilateKernel))
	defer first.Close()
	gocv.Dilate(binary, &binary, first)

	if opts.Integral {
		gocv.Dilate(binary, &binary, first)
		return binary
	}

	erode := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(opts.ErodeKernel, opts.ErodeKernel))
	defer erode.Close()
	gocv.Erode(binary, &binary, erode)

	final := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(opts.FinalDilateKernel, opts.FinalDilateKernel))
	defer final.Close()
	for i := 0; i < opts.FinalDilateIterations; i++ {
		gocv.Dilate(binary, &binary, final)
	}
	return binary
}

// Candidates extracts contours from a preprocessed image and drops the ones
// too small or too thin to be a control.
func Candidates(binary gocv.Mat, opts Options) []Candidate {
	contours := gocv.FindContours(binary, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	var out []Candidate
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < opts.MinArea {
			continue
		}
		r := geometry.FromImageRect(gocv.BoundingRect(contour))
		long, short := max(r.Dx(), r.Dy()), min(r.Dx(), r.Dy())
		if long > short*3 && short < 20 {
			continue
		}
		if long > short*10 {
			continue
		}
		out = append(out, Candidate{Rect: r, Area: area})
	}
	return out
}

// smallestContaining returns the candidate with the smallest contour area
// whose bounds strictly contain tap. The first one wins a tie.
func smallestContaining(candidates []Candidate, tap geometry.Point) (geometry.Rect, bool) {
	var best *Candidate
	for i := range candidates {
		c := &candidates[i]
		dx, dy := tap.X-c.Rect.XMin, tap.Y-c.Rect.YMin
		if dx <= 0 || dx >= c.Rect.Dx() || dy <= 0 || dy >= c.Rect.Dy() {
			continue
		}
		if best == nil || c.Area < best.Area {
			best = c
		}
	}
	if best == nil {
		return geometry.Rect{}, false
	}
	return best.Rect, true
}

// shrink caps r at limit pixels per axis. Each side keeps at most limit/2 of
// its distance to tap, so the tap stays inside and no side grows.
func shrink(r geometry.Rect, tap geometry.Point, limit int) geometry.Rect {
	if r.Dx() <= limit && r.Dy() <= limit {
		return r
	}
	half := limit / 2
	left := min(tap.X-r.XMin, half)
	top := min(tap.Y-r.YMin, half)
	right := min(r.XMax-tap.X, half)
	bottom := min(r.YMax-tap.Y, half)
	return geometry.R(tap.X-left, tap.Y-top, tap.X+right, tap.Y+bottom)
}
