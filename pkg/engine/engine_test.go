package engine

import (
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/pkg/config"
	"github.com/lkarlslund/aircv/pkg/geometry"
	"github.com/lkarlslund/aircv/pkg/template"
)

var (
	black = gocv.NewScalar(0, 0, 0, 0)
	white = gocv.NewScalar(255, 255, 255, 0)
	red   = gocv.NewScalar(0, 0, 255, 0)
)

func solid(s gocv.Scalar, w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(s, h, w, gocv.MatTypeCV8UC3)
}

func paint(m gocv.Mat, r image.Rectangle, s gocv.Scalar) {
	region := m.Region(r)
	defer region.Close()
	region.SetTo(s)
}

// screen returns a 200x200 black frame with white 20x20 squares at the
// given top-left corners.
func screen(corners ...image.Point) gocv.Mat {
	m := solid(black, 200, 200)
	for _, c := range corners {
		paint(m, image.Rectangle{Min: c, Max: c.Add(image.Pt(20, 20))}, white)
	}
	return m
}

func newTemplate(t *testing.T, img gocv.Mat, d template.Descriptor) *template.Template {
	t.Helper()
	tpl, err := template.New("test", img, d)
	require.NoError(t, err)
	return tpl
}

func newService(t *testing.T, mutate ...func(*config.Config)) *Service {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func rp(x, y float64) *geometry.PointF {
	return &geometry.PointF{X: x, Y: y}
}

func th(v float64) *float64 {
	return &v
}

func TestExactMatchNoScaling(t *testing.T) {
	scr := screen(image.Pt(50, 50))
	defer scr.Close()
	tpl := newTemplate(t, solid(white, 20, 20), template.Descriptor{Resolution: geometry.Res(200, 200)})
	defer tpl.Close()

	res, err := newService(t).Match(scr, tpl)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(60, 60), res.Point)
	assert.Greater(t, res.Confidence, 0.99)
}

func TestBelowThreshold(t *testing.T) {
	scr := screen(image.Pt(50, 50))
	defer scr.Close()
	tpl := newTemplate(t, solid(red, 20, 20), template.Descriptor{Resolution: geometry.Res(200, 200)})
	defer tpl.Close()

	res, err := newService(t).Match(scr, tpl)
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestPredictionPicksRecordedSquare(t *testing.T) {
	scr := screen(image.Pt(50, 50), image.Pt(150, 150))
	defer scr.Close()
	tpl := newTemplate(t, solid(white, 20, 20), template.Descriptor{
		Resolution: geometry.Res(200, 200),
		RecordPos:  rp(0.3, 0.3),
	})
	defer tpl.Close()

	s := newService(t, func(c *config.Config) { c.RadiusX, c.RadiusY = 40, 40 })
	res, err := s.Match(scr, tpl)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(160, 160), res.Point)

	// the full screen search prefers the first square in raster order
	res, err = s.MatchWith(Input{Screen: scr, Template: tpl}, s.TemplateMatch())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(60, 60), res.Point)
}

func TestEmptyPredictionFallsBackToFullScreen(t *testing.T) {
	scr := screen(image.Pt(50, 50))
	defer scr.Close()
	tpl := newTemplate(t, solid(white, 20, 20), template.Descriptor{
		Resolution: geometry.Res(200, 200),
		RecordPos:  rp(5, 5),
	})
	defer tpl.Close()

	s := newService(t, func(c *config.Config) { c.Strategies = []string{config.StrategyPredicted} })
	res, err := s.Match(scr, tpl)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(60, 60), res.Point)

	_, err = s.RegionPredicted().Find(Input{Screen: scr, Template: tpl})
	assert.True(t, errors.Is(err, ErrPredictedAreaEmpty))
}

func TestPredictedAreaSmallerThanTemplateFallsBack(t *testing.T) {
	scr := solid(black, 200, 200)
	defer scr.Close()
	paint(scr, image.Rect(100, 100, 160, 120), white)
	tpl := newTemplate(t, solid(white, 60, 20), template.Descriptor{RecordPos: rp(0.15, 0.05)})
	defer tpl.Close()

	s := newService(t, func(c *config.Config) { c.RadiusX, c.RadiusY = 20, 20 })
	res, err := s.Match(scr, tpl)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(130, 110), res.Point)

	_, err = s.RegionPredicted().Find(Input{Screen: scr, Template: tpl})
	assert.True(t, errors.Is(err, ErrPredictedAreaEmpty))

	// a template larger than the whole screen is still an error
	wide := newTemplate(t, solid(white, 300, 20), template.Descriptor{RecordPos: rp(0.15, 0.05)})
	defer wide.Close()
	_, err = s.Match(scr, wide)
	assert.True(t, errors.Is(err, ErrInvalidSize))
}

func TestPredictionWithoutRecordPosIsSkipped(t *testing.T) {
	scr := screen(image.Pt(50, 50))
	defer scr.Close()
	tpl := newTemplate(t, solid(white, 20, 20), template.Descriptor{})
	defer tpl.Close()

	s := newService(t)
	res, err := s.Match(scr, tpl)
	require.NoError(t, err)
	require.NotNil(t, res)

	only := newService(t, func(c *config.Config) { c.Strategies = []string{config.StrategyPredicted} })
	res, err = only.Match(scr, tpl)
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestBlackScreenIsNotFound(t *testing.T) {
	scr := solid(black, 200, 200)
	defer scr.Close()
	tpl := newTemplate(t, solid(white, 20, 20), template.Descriptor{})
	defer tpl.Close()

	res, err := newService(t).Match(scr, tpl)
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestInvalidSizePropagates(t *testing.T) {
	scr := screen(image.Pt(5, 5))
	defer scr.Close()
	tpl := newTemplate(t, solid(white, 300, 20), template.Descriptor{})
	defer tpl.Close()

	_, err := newService(t).Match(scr, tpl)
	assert.True(t, errors.Is(err, ErrInvalidSize))
	var se *SizeError
	assert.True(t, errors.As(err, &se))
}

func TestIgnoreRectSuppressesDecoration(t *testing.T) {
	scr := screen(image.Pt(50, 50))
	defer scr.Close()
	paint(scr, image.Rect(55, 55, 62, 62), red)

	plain := newTemplate(t, solid(white, 20, 20), template.Descriptor{Threshold: th(0.99)})
	defer plain.Close()
	s := newService(t)
	res, err := s.Match(scr, plain)
	require.NoError(t, err)
	assert.Nil(t, res)

	ignoring := newTemplate(t, solid(white, 20, 20), template.Descriptor{
		Threshold: th(0.99),
		Ignore:    []geometry.Rect{geometry.R(4, 4, 13, 13)},
	})
	defer ignoring.Close()
	res, err = s.Match(scr, ignoring)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(60, 60), res.Point)
	assert.Greater(t, res.Confidence, 0.99)
}

func TestFocusRectScoresOnlyFocus(t *testing.T) {
	tplImg := gocv.NewMatWithSize(40, 40, gocv.MatTypeCV8UC3)
	gocv.RandU(&tplImg, black, white)

	scr := solid(black, 200, 200)
	defer scr.Close()
	dst := scr.Region(image.Rect(80, 60, 120, 100))
	tplImg.CopyTo(&dst)
	dst.Close()
	paint(scr, image.Rect(80, 80, 120, 100), gocv.NewScalar(90, 90, 90, 0))

	tpl := newTemplate(t, tplImg, template.Descriptor{
		Threshold: th(0.99),
		Focus:     []geometry.Rect{geometry.R(0, 0, 40, 20)},
	})
	defer tpl.Close()

	res, err := newService(t).Match(scr, tpl)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(80, 60), res.Rectangle.TopLeft())
	assert.Greater(t, res.Confidence, 0.99)

	unfocused := newTemplate(t, tplImg.Clone(), template.Descriptor{Threshold: th(0.99)})
	defer unfocused.Close()
	res, err = newService(t).Match(scr, unfocused)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestFindInside(t *testing.T) {
	scr := screen(image.Pt(50, 50), image.Pt(150, 150))
	defer scr.Close()
	inside := geometry.R(100, 100, 200, 200)
	tpl := newTemplate(t, solid(white, 20, 20), template.Descriptor{FindInside: &inside})
	defer tpl.Close()

	s := newService(t)
	res, err := s.Match(scr, tpl)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(160, 160), res.Point)

	all, err := s.MatchAll(Input{Screen: scr, Template: tpl})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, geometry.Pt(160, 160), all[0].Point)
}

func TestMatchAll(t *testing.T) {
	scr := screen(image.Pt(50, 50), image.Pt(150, 150))
	defer scr.Close()
	tpl := newTemplate(t, solid(white, 20, 20), template.Descriptor{})
	defer tpl.Close()

	s := newService(t)
	res, err := s.Match(scr, tpl)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(60, 60), res.Point)

	all, err := s.MatchAll(Input{Screen: scr, Template: tpl})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, geometry.Pt(60, 60), all[0].Point)
	assert.Equal(t, geometry.Pt(160, 160), all[1].Point)

	one := newService(t, func(c *config.Config) { c.MaxResults = 1 })
	all, err = one.MatchAll(Input{Screen: scr, Template: tpl})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCrossResolution(t *testing.T) {
	scr := screen(image.Pt(50, 50))
	defer scr.Close()
	tpl := newTemplate(t, solid(white, 40, 40), template.Descriptor{Resolution: geometry.Res(1920, 1280)})
	defer tpl.Close()

	s := newService(t)
	res, err := s.MatchWith(Input{Screen: scr, Template: tpl, Live: geometry.Res(960, 640)}, s.TemplateMatch())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.QuadFromXYWH(50, 50, 20, 20), res.Rectangle)

	// without resizing the template no longer fits a 20x20 square
	none := newService(t, func(c *config.Config) { c.ResizeStrategy = "none" })
	res, err = none.MatchWith(Input{Screen: scr, Template: tpl, Live: geometry.Res(960, 640)}, none.TemplateMatch())
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestMatchAllCrossResolution(t *testing.T) {
	scr := screen(image.Pt(50, 50), image.Pt(150, 150))
	defer scr.Close()
	tpl := newTemplate(t, solid(white, 40, 40), template.Descriptor{Resolution: geometry.Res(1920, 1280)})
	defer tpl.Close()

	all, err := newService(t).MatchAll(Input{Screen: scr, Template: tpl, Live: geometry.Res(960, 640)})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, geometry.QuadFromXYWH(50, 50, 20, 20), all[0].Rectangle)
	assert.Equal(t, geometry.QuadFromXYWH(150, 150, 20, 20), all[1].Rectangle)
}

func TestTarget(t *testing.T) {
	scr := screen(image.Pt(50, 50))
	defer scr.Close()
	tpl := newTemplate(t, solid(white, 20, 20), template.Descriptor{TargetPos: template.LeftUp})
	defer tpl.Close()

	p, res, err := newService(t).Target(scr, tpl)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(50, 50), *p)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Strategies = []string{"sift"}
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestServiceCopiesConfig(t *testing.T) {
	cfg := config.Default()
	s, err := New(cfg)
	require.NoError(t, err)
	cfg.Strategies[0] = "changed"
	cfg.Threshold = 0.1
	assert.Equal(t, config.StrategyPredicted, s.Config().Strategies[0])
	assert.Equal(t, 0.7, s.Config().Threshold)
	names := []string{}
	for _, st := range s.Strategies() {
		names = append(names, st.Name())
	}
	assert.Equal(t, []string{"tplpre", "tpl"}, names)
}

func TestConcurrentMatches(t *testing.T) {
	scr := screen(image.Pt(50, 50), image.Pt(150, 150))
	defer scr.Close()
	tpl := newTemplate(t, solid(white, 20, 20), template.Descriptor{})
	defer tpl.Close()
	s := newService(t)

	var wg sync.WaitGroup
	points := make([]geometry.Point, 8)
	wg.Add(len(points))
	for i := range points {
		go func(i int) {
			defer wg.Done()
			res, err := s.Match(scr, tpl)
			if err == nil && res != nil {
				points[i] = res.Point
			}
		}(i)
	}
	wg.Wait()
	for _, p := range points {
		assert.Equal(t, geometry.Pt(60, 60), p)
	}
}

func blocks(side int) gocv.Mat {
	small := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer small.Close()
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			for c := 0; c < 3; c++ {
				small.SetUCharAt(y, x*3+c, uint8((x*53+y*29+c*97+5)%256))
			}
		}
	}
	big := gocv.NewMat()
	gocv.Resize(small, &big, image.Pt(side, side), 0, 0, gocv.InterpolationNearestNeighbor)
	return big
}

func TestMultiScaleStrategy(t *testing.T) {
	scr := solid(black, 200, 200)
	defer scr.Close()
	patch := blocks(40)
	region := scr.Region(image.Rect(60, 80, 100, 120))
	patch.CopyTo(&region)
	region.Close()
	patch.Close()

	tpl := newTemplate(t, blocks(80), template.Descriptor{Resolution: geometry.Res(400, 400)})
	defer tpl.Close()

	s := newService(t, func(c *config.Config) { c.Strategies = []string{config.StrategyMultiScale} })
	require.Len(t, s.Strategies(), 1)
	assert.Equal(t, "mstpl", s.Strategies()[0].Name())

	res, err := s.Match(scr, tpl)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.QuadFromXYWH(60, 80, 40, 40), res.Rectangle)

	res, err = s.MatchWith(Input{Screen: scr, Template: tpl, Bounds: geometry.R(100, 0, 200, 200)}, s.MultiScale())
	require.NoError(t, err)
	assert.Nil(t, res)
}
