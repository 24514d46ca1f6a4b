package match

import (
	"image"
	"math"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/internal/frame"
	"github.com/lkarlslund/aircv/pkg/geometry"
)

const (
	// DefaultScaleMax is the longest source side the multi-scale search
	// works on.
	DefaultScaleMax = 800
	// DefaultScaleStep is the ratio increment between tried sizes.
	DefaultScaleStep = 0.01

	// Sizes where the search image is this small or smaller are skipped.
	minScaledSide = 10
	// Above this search/source ratio the source is shrunk instead of the
	// search image growing.
	maxSearchRatio = 0.2
	// The first pass never tries the search image at full source size.
	firstPassMaxRatio = 0.99
)

// ScaleOptions tune a multi-scale search.
type ScaleOptions struct {
	Options
	// Recorded is the resolution search was captured at. It bounds the sizes
	// tried in the first pass.
	Recorded  geometry.Resolution
	ScaleMax  int // zero means DefaultScaleMax
	ScaleStep float64
}

func (o ScaleOptions) step() float64 {
	if o.ScaleStep <= 0 {
		return DefaultScaleStep
	}
	return o.ScaleStep
}

func (o ScaleOptions) scaleMax() int {
	if o.ScaleMax <= 0 {
		return DefaultScaleMax
	}
	return o.ScaleMax
}

// placement is a peak found at one size, in source coordinates.
type placement struct {
	loc  image.Point
	w, h int
	val  float64
}

// MultiScale finds search in source when the scale between them is unknown.
//
// Sizes are tried from small to large and the first one scoring at or above
// the threshold wins. The first pass only covers the sizes the recorded
// resolution allows. If that finds nothing good enough a second pass covers
// every size. MultiScale returns nil without an error when no size scores
// high enough, and a *frame.SizeError when search is larger than source.
func MultiScale(source, search gocv.Mat, opts ScaleOptions) (*Result, error) {
	w, h := frame.Size(source)
	sw, sh := frame.Size(search)
	if err := frame.CheckFits(w, h, sw, sh); err != nil {
		return nil, err
	}
	src, sch := frame.ToGray(source), frame.ToGray(search)
	defer src.Close()
	defer sch.Close()

	step := opts.step()
	lo, hi := ratioRange(w, h, sw, sh, opts.Recorded)
	p, ok := scaleSearch(src, sch, math.Max(lo, step), math.Min(hi, firstPassMaxRatio), DefaultScaleMax, step, opts.Threshold)
	confidence := 0.0
	if ok {
		confidence = scaledConfidence(source, search, p, opts.Options)
	}
	if confidence < opts.Threshold {
		log.Debug().Float64("confidence", confidence).Msg("multi-scale first pass failed, trying every size")
		if q, found := scaleSearch(src, sch, 0.01, 1, opts.scaleMax(), step, opts.Threshold); found {
			p, ok = q, true
			confidence = scaledConfidence(source, search, p, opts.Options)
		}
	}
	if !ok {
		log.Debug().Msg("multi-scale search found no usable size")
		return nil, nil
	}

	result := newResult(p.loc, p.w, p.h, confidence)
	log.Debug().
		Float64("threshold", opts.Threshold).
		Stringer("result", result).
		Msg("multi-scale template match")
	if confidence < opts.Threshold {
		return nil, nil
	}
	return result, nil
}

// ratioRange returns the expected search/source size ratio bounds. Without a
// recorded resolution only the current ratio is expected.
func ratioRange(w, h, sw, sh int, recorded geometry.Resolution) (float64, float64) {
	ratio := math.Max(float64(sh)/float64(h), float64(sw)/float64(w))
	if recorded.Width <= 0 || recorded.Height <= 0 {
		return ratio, ratio
	}
	ry := float64(h) / float64(recorded.Height)
	rx := float64(w) / float64(recorded.Width)
	return ratio * math.Min(ry, rx), ratio * math.Max(ry, rx)
}

// scaleSearch walks ratios from lo to hi on gray images. src is first
// shrunk so its longest side is at most srcMax.
func scaleSearch(src, sch gocv.Mat, lo, hi float64, srcMax int, step, threshold float64) (placement, bool) {
	w, h := frame.Size(src)
	gr := float64(srcMax) / float64(max(w, h))
	shrunk := src
	if gr < 1 {
		shrunk = gocv.NewMat()
		defer shrunk.Close()
		gocv.Resize(src, &shrunk, image.Pt(int(float64(w)*gr), int(float64(h)*gr)), 0, 0, gocv.InterpolationLinear)
	}

	empty := gocv.NewMat()
	defer empty.Close()
	var (
		best  placement
		bestR float64
		found bool
	)
	lo, hi = math.Max(lo, step), math.Max(hi, step)
	for r := lo; r <= hi; r += step {
		s, t, sr := resizeByRatio(shrunk, sch, r)
		ssw, ssh := frame.Size(s)
		tw, th := frame.Size(t)
		if min(tw, th) > minScaledSide && frame.CheckFits(ssw, ssh, tw, th) == nil {
			res := gocv.NewMat()
			gocv.MatchTemplate(s, t, &res, gocv.TmCcoeffNormed, empty)
			_, val, _, loc := gocv.MinMaxLoc(res)
			res.Close()
			if v := float64(val); v > best.val && !math.IsNaN(v) && !math.IsInf(v, 0) {
				best = placement{
					loc: image.Pt(int(float64(loc.X)/sr), int(float64(loc.Y)/sr)),
					w:   int(float64(tw) / sr),
					h:   int(float64(th) / sr),
					val: v,
				}
				bestR, found = r, true
			}
		}
		s.Close()
		t.Close()
		if found && best.val >= threshold {
			break
		}
	}
	if !found {
		return placement{}, false
	}
	if gr < 1 {
		best.loc = image.Pt(int(float64(best.loc.X)/gr), int(float64(best.loc.Y)/gr))
		best.w, best.h = int(float64(best.w)/gr), int(float64(best.h)/gr)
	}
	log.Debug().Float64("ratio", bestR).Float64("value", best.val).Msg("multi-scale peak")
	return best, true
}

// resizeByRatio sizes sch so its dominant side is ratio of src's. Up to
// maxSearchRatio only sch shrinks; above it src shrinks too, so sch is never
// enlarged. sr is the factor applied to src. Both returned mats are new.
func resizeByRatio(src, sch gocv.Mat, ratio float64) (gocv.Mat, gocv.Mat, float64) {
	w, h := frame.Size(src)
	tw, th := frame.Size(sch)
	side, tside := float64(w), float64(tw)
	if float64(th)/float64(h) >= float64(tw)/float64(w) {
		side, tside = float64(h), float64(th)
	}
	tr, sr := side*ratio/tside, 1.0
	if ratio >= maxSearchRatio {
		tr = side * maxSearchRatio / tside
		sr = (tside * tr / ratio) / side
	}

	t := sch.Clone()
	if tr <= 1 {
		gocv.Resize(sch, &t, image.Pt(max(int(float64(tw)*tr), 1), max(int(float64(th)*tr), 1)), 0, 0, gocv.InterpolationLinear)
	}
	s := src.Clone()
	if nw, nh := max(int(math.Round(float64(w)*sr)), 1), max(int(math.Round(float64(h)*sr)), 1); nw != w || nh != h {
		gocv.Resize(src, &s, image.Pt(nw, nh), 0, 0, gocv.InterpolationLinear)
	}
	return s, t, sr
}

// scaledConfidence scores a multi-scale placement. With RGB set the window is
// resized to the search image and compared per channel.
func scaledConfidence(source, search gocv.Mat, p placement, opts Options) float64 {
	if !opts.RGB {
		return clamp01(p.val)
	}
	window, _ := frame.Crop(source, geometry.FromXYWH(p.loc.X, p.loc.Y, p.w, p.h))
	defer window.Close()
	if window.Empty() {
		return 0
	}
	sized := gocv.NewMat()
	defer sized.Close()
	gocv.Resize(window, &sized, image.Pt(search.Cols(), search.Rows()), 0, 0, gocv.InterpolationLinear)
	return RGBConfidence(sized, search)
}
