// Package engine finds templates on device screens.
//
// A Service is built once from a config.Config and is safe for concurrent
// use; it holds no mutable state. Each call works on the screen and template
// it is given and never modifies either.
package engine

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/internal/frame"
	"github.com/lkarlslund/aircv/internal/match"
	"github.com/lkarlslund/aircv/internal/predict"
	"github.com/lkarlslund/aircv/internal/refine"
	"github.com/lkarlslund/aircv/internal/resize"
	"github.com/lkarlslund/aircv/pkg/config"
	"github.com/lkarlslund/aircv/pkg/geometry"
	"github.com/lkarlslund/aircv/pkg/smartcrop"
	"github.com/lkarlslund/aircv/pkg/template"
)

type Service struct {
	cfg        config.Config
	resize     resize.Strategy
	strategies []Strategy
}

// New validates cfg and builds a Service from a copy of it.
func New(cfg config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Strategies = append([]string(nil), cfg.Strategies...)
	rs, err := resize.ByName(cfg.ResizeStrategy)
	if err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, resize: rs}
	for _, name := range cfg.Strategies {
		switch name {
		case config.StrategyTemplate:
			s.strategies = append(s.strategies, s.TemplateMatch())
		case config.StrategyPredicted:
			s.strategies = append(s.strategies, s.RegionPredicted())
		case config.StrategyMultiScale:
			s.strategies = append(s.strategies, s.MultiScale())
		}
	}
	return s, nil
}

// Config returns a copy of the configuration the service was built with.
func (s *Service) Config() config.Config {
	c := s.cfg
	c.Strategies = append([]string(nil), s.cfg.Strategies...)
	return c
}

// Strategies returns the configured strategies in the order they are tried.
func (s *Service) Strategies() []Strategy {
	return append([]Strategy(nil), s.strategies...)
}

func (s *Service) TemplateMatch() TemplateMatch {
	return TemplateMatch{s: s}
}

func (s *Service) RegionPredicted() RegionPredictedTemplateMatch {
	policy := predict.Asymmetric
	if s.cfg.SymmetricPrediction {
		policy = predict.Symmetric
	}
	return RegionPredictedTemplateMatch{s: s, RadiusX: s.cfg.RadiusX, RadiusY: s.cfg.RadiusY, Policy: policy}
}

func (s *Service) MultiScale() MultiScaleTemplateMatch {
	return MultiScaleTemplateMatch{s: s, ScaleMax: s.cfg.ScaleMax, ScaleStep: s.cfg.ScaleStep}
}

// Match finds t on screen with the configured strategies.
func (s *Service) Match(screen gocv.Mat, t *template.Template) (*match.Result, error) {
	return s.MatchWith(Input{Screen: screen, Template: t}, s.strategies...)
}

// MatchWith tries strategies in order and returns the first result found.
//
// A strategy that does not apply to the template is skipped. When the
// predicted area is empty the whole screen is searched instead. Any other
// error is returned as is.
func (s *Service) MatchWith(in Input, strategies ...Strategy) (*match.Result, error) {
	in, ok, err := s.prepare(in)
	if err != nil || !ok {
		return nil, err
	}
	full := s.TemplateMatch()
	searchedFull := false
	for _, st := range strategies {
		if _, isFull := st.(TemplateMatch); isFull && searchedFull {
			continue
		}
		res, err := st.Find(in)
		switch {
		case errors.Is(err, ErrNoRecordPos):
			log.Debug().Str("strategy", st.Name()).Str("template", in.Template.Name).Msg("skipping strategy, no record position")
			continue
		case errors.Is(err, ErrPredictedAreaEmpty):
			log.Warn().Err(err).Str("template", in.Template.Name).Msg("predicted area empty, searching full screen")
			res, err = full.Find(in)
			searchedFull = true
		case err == nil:
			if _, isFull := st.(TemplateMatch); isFull {
				searchedFull = true
			}
		}
		if err != nil {
			return nil, err
		}
		if res != nil {
			log.Debug().Str("strategy", st.Name()).Str("template", in.Template.Name).Stringer("result", res).Msg("found")
			return res, nil
		}
	}
	return nil, nil
}

// MatchAll returns every occurrence of in.Template on in.Screen, best first,
// up to the configured maximum. It always searches the full screen, or
// in.Bounds and find_inside; prediction only applies to single results.
func (s *Service) MatchAll(in Input) ([]match.Result, error) {
	in, ok, err := s.prepare(in)
	if err != nil || !ok {
		return nil, err
	}
	t := in.Template
	b := in.bounds()
	if b.Empty() {
		w, h := frame.Size(in.Screen)
		return nil, &frame.SizeError{Source: [2]int{w, h}, Search: [2]int{b.Dx(), b.Dy()}}
	}
	src := frame.Window(in.Screen, b)
	defer src.Close()

	live := in.live()
	scaled, err := s.scaleTemplate(t.Image, t, live)
	if err != nil {
		return nil, err
	}
	defer scaled.Close()

	opts := s.options(t)
	results, err := match.All(src, scaled, opts)
	if err != nil {
		return nil, err
	}
	if len(t.Ignore) > 0 || len(t.Focus) > 0 {
		kept := results[:0]
		for _, r := range results {
			c, err := s.refined(src, r, t, live)
			if err != nil {
				return nil, err
			}
			if c >= opts.Threshold {
				r.Confidence = c
				kept = append(kept, r)
			}
		}
		results = kept
	}
	return match.OffsetAll(results, b.Min()), nil
}

// Target finds t and returns the point its target_pos selects.
func (s *Service) Target(screen gocv.Mat, t *template.Template) (*geometry.Point, *match.Result, error) {
	res, err := s.Match(screen, t)
	if err != nil || res == nil {
		return nil, nil, err
	}
	p := t.TargetPos.Point(*res)
	return &p, res, nil
}

// SmartCrop suggests a template around tap using the configured options.
func (s *Service) SmartCrop(screen gocv.Mat, tap geometry.Point) (gocv.Mat, geometry.Rect, error) {
	return smartcrop.Crop(screen, tap, s.cfg.SmartCrop)
}

// prepare applies find_inside and the black screen guard. ok is false when
// matching should be skipped.
func (s *Service) prepare(in Input) (Input, bool, error) {
	if in.Template == nil {
		return in, false, errors.New("no template")
	}
	if in.Screen.Empty() {
		return in, false, fmt.Errorf("empty screen: %w", ErrInvalidSize)
	}
	if frame.IsBlack(in.Screen) {
		log.Warn().Str("template", in.Template.Name).Msg("whole screen is black, skipping match")
		return in, false, nil
	}
	if fi := in.Template.FindInside; fi != nil && in.Bounds == (geometry.Rect{}) {
		in.Bounds = *fi
	}
	return in, true, nil
}

func (s *Service) options(t *template.Template) match.Options {
	return match.Options{
		Threshold:  t.ThresholdOr(s.cfg.Threshold),
		RGB:        t.RGB || s.cfg.StrictColor,
		MaxResults: s.cfg.MaxResults,
	}
}

func (s *Service) scaleTemplate(img gocv.Mat, t *template.Template, live geometry.Resolution) (gocv.Mat, error) {
	return resize.Template(img, s.resize, t.Resolution, live, s.cfg.DesignResolution)
}

// search runs the single-result pipeline on src: resize, locate, refine.
func (s *Service) search(src gocv.Mat, t *template.Template, live geometry.Resolution) (*match.Result, error) {
	scaled, err := s.scaleTemplate(t.Image, t, live)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}
	defer scaled.Close()

	opts := s.options(t)
	if len(t.Ignore) == 0 && len(t.Focus) == 0 {
		return match.Best(src, scaled, opts)
	}

	var res *match.Result
	if len(t.Ignore) > 0 {
		mask := refine.Mask(t.Image.Cols(), t.Image.Rows(), t.Ignore)
		scaledMask, err := s.scaleTemplate(mask, t, live)
		mask.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: ignore mask: %w", t.Name, err)
		}
		res, err = match.Masked(src, scaled, scaledMask, match.Options{})
		scaledMask.Close()
		if err != nil {
			return nil, err
		}
	} else {
		res, err = match.Best(src, scaled, match.Options{RGB: opts.RGB})
		if err != nil {
			return nil, err
		}
	}
	if res == nil {
		return nil, nil
	}

	c, err := s.refined(src, *res, t, live)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}
	log.Debug().Str("template", t.Name).Float64("raw", res.Confidence).Float64("refined", c).Msg("refined confidence")
	if c < opts.Threshold {
		return nil, nil
	}
	res.Confidence = c
	return res, nil
}

// refined scores the window of src under r against the template's focus
// rectangles, or against everything outside its ignore rectangles.
func (s *Service) refined(src gocv.Mat, r match.Result, t *template.Template, live geometry.Resolution) (float64, error) {
	target := frame.Window(src, r.Bounds())
	defer target.Close()
	scale := func(piece gocv.Mat) (gocv.Mat, error) {
		return s.scaleTemplate(piece, t, live)
	}
	rgb := t.RGB || s.cfg.StrictColor
	if len(t.Focus) > 0 {
		return refine.OnlyInFocus(target, t.Image, t.Focus, scale, rgb)
	}
	return refine.OutsideIgnore(target, t.Image, t.Ignore, scale, rgb)
}
