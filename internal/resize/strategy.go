// Package resize adapts a template recorded at one screen resolution to the
// resolution of the device it is matched against.
package resize

import (
	"fmt"
	"image"
	"math"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/internal/frame"
	"github.com/lkarlslund/aircv/pkg/geometry"
)

// DefaultDesignWidth and DefaultDesignHeight form the design resolution
// substituted when none is configured.
const (
	DefaultDesignWidth  = 960
	DefaultDesignHeight = 640
)

// DefaultDesign returns the default design resolution.
func DefaultDesign() geometry.Resolution {
	return geometry.Res(DefaultDesignWidth, DefaultDesignHeight)
}

// Strategy computes the size a w*h template recorded at templateRes should
// have on a screen of liveRes.
type Strategy interface {
	Dimensions(w, h int, templateRes, liveRes, designRes geometry.Resolution) (int, int)
}

// StrategyFunc adapts a plain function to Strategy.
type StrategyFunc func(w, h int, templateRes, liveRes, designRes geometry.Resolution) (int, int)

func (f StrategyFunc) Dimensions(w, h int, templateRes, liveRes, designRes geometry.Resolution) (int, int) {
	return f(w, h, templateRes, liveRes, designRes)
}

// MinFit scales both resolutions against the design resolution using the
// smaller axis ratio, the way UI frameworks fit a layout without stretching,
// and applies the ratio of the two scales to the template.
var MinFit Strategy = StrategyFunc(minFit)

// None never resizes. Use it for fixed-DPI targets that must not interpolate.
var None Strategy = StrategyFunc(func(w, h int, _, _, _ geometry.Resolution) (int, int) {
	return w, h
})

func minFit(w, h int, templateRes, liveRes, designRes geometry.Resolution) (int, int) {
	if templateRes == liveRes || templateRes.IsZero() || liveRes.IsZero() {
		return w, h
	}
	if designRes.IsZero() {
		designRes = DefaultDesign()
	}
	scaleTemplate := math.Min(float64(templateRes.Width)/float64(designRes.Width), float64(templateRes.Height)/float64(designRes.Height))
	scaleLive := math.Min(float64(liveRes.Width)/float64(designRes.Width), float64(liveRes.Height)/float64(designRes.Height))
	scale := scaleLive / scaleTemplate
	return int(float64(w) * scale), int(float64(h) * scale)
}

// ByName resolves a configured strategy name.
func ByName(name string) (Strategy, error) {
	switch name {
	case "", "min_fit", "cocos_min":
		return MinFit, nil
	case "none", "no_resize":
		return None, nil
	}
	return nil, fmt.Errorf("unknown resize strategy %q", name)
}

// Dimensions runs s with the equal-resolution fast path in front of it: a
// template recorded at exactly the live resolution, or with no resolution
// recorded, keeps its size whatever the strategy says.
func Dimensions(s Strategy, w, h int, templateRes, liveRes, designRes geometry.Resolution) (int, int) {
	if templateRes == liveRes || templateRes.IsZero() || liveRes.IsZero() {
		return w, h
	}
	return s.Dimensions(w, h, templateRes, liveRes, designRes)
}

// Template returns a resized copy of img for liveRes. When the size does not
// change the copy is exact; no interpolation happens.
func Template(img gocv.Mat, s Strategy, templateRes, liveRes, designRes geometry.Resolution) (gocv.Mat, error) {
	w, h := frame.Size(img)
	nw, nh := Dimensions(s, w, h, templateRes, liveRes, designRes)
	if nw == w && nh == h {
		return img.Clone(), nil
	}
	if nw <= 0 || nh <= 0 {
		return gocv.NewMat(), fmt.Errorf("resize %dx%d to %dx%d: %w", w, h, nw, nh, frame.ErrInvalidSize)
	}
	log.Debug().
		Str("from", fmt.Sprintf("%dx%d", w, h)).
		Str("to", fmt.Sprintf("%dx%d", nw, nh)).
		Stringer("template_resolution", templateRes).
		Stringer("live_resolution", liveRes).
		Msg("cross resolution resize")
	dst := gocv.NewMat()
	gocv.Resize(img, &dst, image.Pt(nw, nh), 0, 0, gocv.InterpolationLinear)
	return dst, nil
}
