// Package match locates a search image inside a source image by normalized
// correlation and turns correlation peaks into results.
package match

import (
	"image"
	"math"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/internal/frame"
)

const (
	// DefaultThreshold is the minimal confidence for a match to be reported.
	DefaultThreshold = 0.7
	// MaxResultCount caps the number of results All reports.
	MaxResultCount = 10

	// Peaks closer than this are treated as equal and the first in raster
	// order wins.
	tieEpsilon = 1e-5
)

// Options tune a single match call.
type Options struct {
	Threshold  float64
	RGB        bool // recompute confidence on HSV channels at the peak
	MaxResults int  // zero means MaxResultCount
}

func (o Options) maxResults() int {
	if o.MaxResults <= 0 {
		return MaxResultCount
	}
	return o.MaxResults
}

// Best returns the single best placement of search inside source. It returns
// nil without an error when the confidence is below the threshold, and a
// *frame.SizeError when search does not fit in source.
func Best(source, search gocv.Mat, opts Options) (*Result, error) {
	return best(source, search, nil, opts)
}

// Masked is Best with a mask the size of search: zero mask pixels take no
// part in the correlation, neither in the cross term nor in the norms.
func Masked(source, search, mask gocv.Mat, opts Options) (*Result, error) {
	if mask.Cols() != search.Cols() || mask.Rows() != search.Rows() {
		return nil, &frame.SizeError{
			Source: [2]int{search.Cols(), search.Rows()},
			Search: [2]int{mask.Cols(), mask.Rows()},
		}
	}
	return best(source, search, &mask, opts)
}

func best(source, search gocv.Mat, mask *gocv.Mat, opts Options) (*Result, error) {
	res, err := surface(source, search, mask)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	s, err := newPeaks(res)
	if err != nil {
		return nil, err
	}
	loc, raw, ok := s.top()
	if !ok {
		return nil, nil
	}
	w, h := frame.Size(search)
	confidence := score(source, search, loc, raw, opts)
	result := newResult(loc, w, h, confidence)
	log.Debug().
		Float64("threshold", opts.Threshold).
		Bool("masked", mask != nil).
		Stringer("result", result).
		Msg("template match")
	if confidence < opts.Threshold {
		return nil, nil
	}
	return result, nil
}

// All returns every placement of search inside source scoring at or above the
// threshold, best first. After each pick the surrounding placements that
// would overlap it are suppressed, so one on-screen element yields one result.
func All(source, search gocv.Mat, opts Options) ([]Result, error) {
	res, err := surface(source, search, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	s, err := newPeaks(res)
	if err != nil {
		return nil, err
	}
	w, h := frame.Size(search)
	var results []Result
	for len(results) < opts.maxResults() {
		loc, raw, ok := s.top()
		if !ok || clamp01(raw) < opts.Threshold {
			break
		}
		s.suppress(loc, w-1, h-1)
		confidence := score(source, search, loc, raw, opts)
		if confidence < opts.Threshold {
			continue
		}
		results = append(results, *newResult(loc, w, h, confidence))
	}
	log.Debug().Int("count", len(results)).Float64("threshold", opts.Threshold).Msg("template match all")
	return results, nil
}

// surface computes the correlation of search at every placement in source.
//
// Textured search images are correlated on intensity with the correlation
// coefficient. That metric is undefined for flat images and for masked
// correlation, so those use normalized cross-correlation over color. For a
// flat search image that only compares hue, so each placement is further
// scaled by how close the window's mean brightness is to the search image's.
func surface(source, search gocv.Mat, mask *gocv.Mat) (gocv.Mat, error) {
	w, h := frame.Size(source)
	sw, sh := frame.Size(search)
	if err := frame.CheckFits(w, h, sw, sh); err != nil {
		return gocv.NewMat(), err
	}

	res := gocv.NewMat()
	if mask == nil && !isFlat(search) {
		src, sch := frame.ToGray(source), frame.ToGray(search)
		defer src.Close()
		defer sch.Close()
		empty := gocv.NewMat()
		defer empty.Close()
		gocv.MatchTemplate(src, sch, &res, gocv.TmCcoeffNormed, empty)
		return res, nil
	}

	src, sch := frame.ToBGR(source), frame.ToBGR(search)
	defer src.Close()
	defer sch.Close()
	m := gocv.NewMat()
	if mask != nil {
		m.Close()
		m = frame.ToBGR(*mask)
	}
	defer m.Close()
	gocv.MatchTemplate(src, sch, &res, gocv.TmCcorrNormed, m)
	if mask == nil {
		if err := weightByBrightness(res, source, search); err != nil {
			res.Close()
			return gocv.NewMat(), err
		}
	}
	return res, nil
}

// weightByBrightness multiplies every cell of res by
// 1 - |mean(window) - mean(search)| / 255 on the gray image. Window sums come
// from correlating with a box of ones, so they line up with res cell for cell.
func weightByBrightness(res, source, search gocv.Mat) error {
	src, sch := frame.ToGray(source), frame.ToGray(search)
	defer src.Close()
	defer sch.Close()
	want := sch.Mean().Val1

	w, h := frame.Size(sch)
	ones := gocv.Ones(h, w, gocv.MatTypeCV8UC1)
	defer ones.Close()
	sums := gocv.NewMat()
	defer sums.Close()
	empty := gocv.NewMat()
	defer empty.Close()
	gocv.MatchTemplate(src, ones, &sums, gocv.TmCcorr, empty)

	scores, err := res.DataPtrFloat32()
	if err != nil {
		return err
	}
	totals, err := sums.DataPtrFloat32()
	if err != nil {
		return err
	}
	area := float64(w * h)
	for i := range scores {
		diff := math.Abs(float64(totals[i])/area - want)
		scores[i] *= float32(1 - diff/255)
	}
	return nil
}

// score turns a raw surface value into the reported confidence.
func score(source, search gocv.Mat, loc image.Point, raw float64, opts Options) float64 {
	if !opts.RGB {
		return clamp01(raw)
	}
	w, h := frame.Size(search)
	window := source.Region(image.Rect(loc.X, loc.Y, loc.X+w, loc.Y+h))
	defer window.Close()
	return RGBConfidence(window, search)
}

func isFlat(m gocv.Mat) bool {
	gray := frame.ToGray(m)
	defer gray.Close()
	minVal, maxVal, _, _ := gocv.MinMaxLoc(gray)
	return minVal == maxVal
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// peaks walks a correlation surface. Suppressed or undefined cells are
// skipped.
type peaks struct {
	data       []float32
	cols, rows int
}

func newPeaks(res gocv.Mat) (*peaks, error) {
	data, err := res.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	return &peaks{data: data, cols: res.Cols(), rows: res.Rows()}, nil
}

// top returns the global maximum. Ties within tieEpsilon go to the first
// cell in raster order.
func (p *peaks) top() (image.Point, float64, bool) {
	at, best := -1, 0.0
	for i, v := range p.data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if at < 0 || f > best+tieEpsilon {
			at, best = i, f
		}
	}
	if at < 0 {
		return image.Point{}, 0, false
	}
	return image.Pt(at%p.cols, at/p.cols), best, true
}

// suppress removes every placement within dx, dy of loc.
func (p *peaks) suppress(loc image.Point, dx, dy int) {
	neg := float32(math.Inf(-1))
	for y := max(0, loc.Y-dy); y <= min(p.rows-1, loc.Y+dy); y++ {
		row := p.data[y*p.cols : (y+1)*p.cols]
		for x := max(0, loc.X-dx); x <= min(p.cols-1, loc.X+dx); x++ {
			row[x] = neg
		}
	}
}
