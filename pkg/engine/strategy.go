package engine

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/internal/frame"
	"github.com/lkarlslund/aircv/internal/match"
	"github.com/lkarlslund/aircv/internal/predict"
	"github.com/lkarlslund/aircv/pkg/config"
	"github.com/lkarlslund/aircv/pkg/geometry"
	"github.com/lkarlslund/aircv/pkg/template"
)

// Input is one screen to search and the template to find in it.
type Input struct {
	Screen   gocv.Mat
	Template *template.Template
	// Live is the resolution of the device the screen came from. Zero means
	// the screen's own size.
	Live geometry.Resolution
	// Bounds limits the search to part of the screen. Zero means all of it.
	Bounds geometry.Rect
}

func (in Input) live() geometry.Resolution {
	if in.Live.IsZero() {
		w, h := frame.Size(in.Screen)
		return geometry.Res(w, h)
	}
	return in.Live
}

func (in Input) bounds() geometry.Rect {
	full := frame.Bounds(in.Screen)
	if in.Bounds == (geometry.Rect{}) {
		return full
	}
	return in.Bounds.Intersect(full)
}

// Strategy is one way of finding a template on a screen. Find returns nil
// without an error when the template is not there.
type Strategy interface {
	Name() string
	Find(in Input) (*match.Result, error)
}

// TemplateMatch searches the whole screen, or Input.Bounds when set.
type TemplateMatch struct {
	s *Service
}

func (TemplateMatch) Name() string {
	return config.StrategyTemplate
}

func (m TemplateMatch) Find(in Input) (*match.Result, error) {
	b := in.bounds()
	if b.Empty() {
		w, h := frame.Size(in.Screen)
		return nil, &frame.SizeError{Source: [2]int{w, h}, Search: [2]int{b.Dx(), b.Dy()}}
	}
	src := in.Screen
	if b != frame.Bounds(in.Screen) {
		src = frame.Window(in.Screen, b)
		defer src.Close()
	}
	res, err := m.s.search(src, in.Template, in.live())
	if err != nil || res == nil {
		return nil, err
	}
	moved := res.Offset(b.Min())
	return &moved, nil
}

// RegionPredictedTemplateMatch only searches a window around where the
// template was tapped when it was recorded.
type RegionPredictedTemplateMatch struct {
	s       *Service
	RadiusX int
	RadiusY int
	Policy  predict.Policy
}

func (RegionPredictedTemplateMatch) Name() string {
	return config.StrategyPredicted
}

func (m RegionPredictedTemplateMatch) Find(in Input) (*match.Result, error) {
	t := in.Template
	if t.RecordPos == nil {
		return nil, fmt.Errorf("%s: %w", t.Name, ErrNoRecordPos)
	}
	live := in.live()
	area := predict.Area(live, *t.RecordPos, m.RadiusX, m.RadiusY, m.Policy)
	if in.Bounds != (geometry.Rect{}) {
		area = area.Intersect(in.Bounds)
	}
	log.Debug().Str("template", t.Name).Msg("searching predicted area")

	sub, offset, err := predict.Crop(in.Screen, area)
	defer sub.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}
	res, err := m.s.search(sub, t, live)
	if errors.Is(err, ErrInvalidSize) {
		// The template fits the screen but not the area around the recorded
		// position; a wider search may still find it.
		w, h := frame.Size(sub)
		return nil, fmt.Errorf("%s: %dx%d area %v: %w (%v)", t.Name, w, h, area, ErrPredictedAreaEmpty, err)
	}
	if err != nil || res == nil {
		return nil, err
	}
	moved := res.Offset(offset)
	return &moved, nil
}

// MultiScaleTemplateMatch searches the whole screen, or Input.Bounds, trying
// every template size. It needs no live resolution and suits templates whose
// scale on the device cannot be predicted. Ignore and focus rectangles do not
// apply to it.
type MultiScaleTemplateMatch struct {
	s         *Service
	ScaleMax  int
	ScaleStep float64
}

func (MultiScaleTemplateMatch) Name() string {
	return config.StrategyMultiScale
}

func (m MultiScaleTemplateMatch) Find(in Input) (*match.Result, error) {
	t := in.Template
	b := in.bounds()
	if b.Empty() {
		w, h := frame.Size(in.Screen)
		return nil, &frame.SizeError{Source: [2]int{w, h}, Search: [2]int{b.Dx(), b.Dy()}}
	}
	src := in.Screen
	if b != frame.Bounds(in.Screen) {
		src = frame.Window(in.Screen, b)
		defer src.Close()
	}
	res, err := match.MultiScale(src, t.Image, match.ScaleOptions{
		Options:   m.s.options(t),
		Recorded:  t.Resolution,
		ScaleMax:  m.ScaleMax,
		ScaleStep: m.ScaleStep,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}
	if res == nil {
		return nil, nil
	}
	moved := res.Offset(b.Min())
	return &moved, nil
}
