package match

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/internal/frame"
	"github.com/lkarlslund/aircv/pkg/geometry"
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

func TestIdentity(t *testing.T) {
	src := gocv.NewMatWithSize(200, 240, gocv.MatTypeCV8UC3)
	defer src.Close()
	gocv.RandU(&src, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(255, 255, 255, 0))

	tpl := frame.Window(src, geometry.FromXYWH(30, 40, 25, 25))
	defer tpl.Close()

	res, err := Best(src, tpl, Options{Threshold: DefaultThreshold})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(30, 40), res.Rectangle.TopLeft())
	assert.Greater(t, res.Confidence, 0.99)
}

func TestWhiteSquare(t *testing.T) {
	src := solid(black, 200, 200)
	defer src.Close()
	paint(src, image.Rect(50, 50, 70, 70), white)
	tpl := solid(white, 20, 20)
	defer tpl.Close()

	res, err := Best(src, tpl, Options{Threshold: DefaultThreshold})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(60, 60), res.Point)
	assert.Greater(t, res.Confidence, 0.99)
	assert.Equal(t, geometry.QuadFromXYWH(50, 50, 20, 20), res.Rectangle)
}

func TestFlatTemplateNeedsMatchingBrightness(t *testing.T) {
	gray := gocv.NewScalar(100, 100, 100, 0)
	tpl := solid(white, 20, 20)
	defer tpl.Close()

	src := solid(black, 200, 200)
	defer src.Close()
	paint(src, image.Rect(20, 20, 40, 40), gray)
	res, err := Best(src, tpl, Options{Threshold: DefaultThreshold})
	require.NoError(t, err)
	assert.Nil(t, res)

	// a uniform non-black background must not win over the real square
	bg := solid(gray, 200, 200)
	defer bg.Close()
	paint(bg, image.Rect(120, 120, 140, 140), white)
	res, err = Best(bg, tpl, Options{Threshold: DefaultThreshold})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(130, 130), res.Point)
	assert.Greater(t, res.Confidence, 0.99)

	all, err := All(bg, tpl, Options{Threshold: DefaultThreshold})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestBelowThresholdIsNotAnError(t *testing.T) {
	src := solid(black, 200, 200)
	defer src.Close()
	paint(src, image.Rect(50, 50, 70, 70), white)
	tpl := solid(red, 20, 20)
	defer tpl.Close()

	res, err := Best(src, tpl, Options{Threshold: DefaultThreshold})
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestTieBreakAndFindAll(t *testing.T) {
	src := solid(black, 200, 200)
	defer src.Close()
	paint(src, image.Rect(50, 50, 70, 70), white)
	paint(src, image.Rect(150, 150, 170, 170), white)
	tpl := solid(white, 20, 20)
	defer tpl.Close()

	res, err := Best(src, tpl, Options{Threshold: DefaultThreshold})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(60, 60), res.Point)

	all, err := All(src, tpl, Options{Threshold: DefaultThreshold})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, geometry.Pt(60, 60), all[0].Point)
	assert.Equal(t, geometry.Pt(160, 160), all[1].Point)
}

func TestFindAllLimit(t *testing.T) {
	src := solid(black, 300, 100)
	defer src.Close()
	for x := 10; x < 290; x += 40 {
		paint(src, image.Rect(x, 40, x+20, 60), white)
	}
	tpl := solid(white, 20, 20)
	defer tpl.Close()

	all, err := All(src, tpl, Options{Threshold: DefaultThreshold, MaxResults: 3})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	all, err = All(src, tpl, Options{Threshold: DefaultThreshold})
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestInvalidSize(t *testing.T) {
	src := solid(black, 10, 10)
	defer src.Close()
	tpl := solid(white, 20, 5)
	defer tpl.Close()

	_, err := Best(src, tpl, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, frame.ErrInvalidSize))
	var se *frame.SizeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, [2]int{20, 5}, se.Search)

	_, err = All(src, tpl, Options{})
	assert.True(t, errors.Is(err, frame.ErrInvalidSize))

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = Best(src, empty, Options{})
	assert.True(t, errors.Is(err, frame.ErrInvalidSize))
}

func TestMaskedIgnoresDecoration(t *testing.T) {
	src := solid(black, 200, 200)
	defer src.Close()
	paint(src, image.Rect(50, 50, 70, 70), white)
	paint(src, image.Rect(55, 55, 62, 62), red)

	tpl := solid(white, 20, 20)
	defer tpl.Close()
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 20, 20, gocv.MatTypeCV8UC1)
	defer mask.Close()
	paint(mask, image.Rect(5, 5, 12, 12), gocv.NewScalar(0, 0, 0, 0))

	res, err := Masked(src, tpl, mask, Options{})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, geometry.Pt(50, 50), res.Rectangle.TopLeft())
	assert.Greater(t, res.Confidence, 0.99)

	small := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 10, 10, gocv.MatTypeCV8UC1)
	defer small.Close()
	_, err = Masked(src, tpl, small, Options{})
	assert.True(t, errors.Is(err, frame.ErrInvalidSize))
}

func TestRGBConfidence(t *testing.T) {
	w := solid(white, 20, 20)
	defer w.Close()
	r := solid(red, 20, 20)
	defer r.Close()

	assert.Greater(t, RGBConfidence(w, w), 0.99)
	assert.Less(t, RGBConfidence(w, r), 0.1)
	small := solid(red, 10, 10)
	defer small.Close()
	assert.Equal(t, 0.0, RGBConfidence(w, small))
}

func TestRGBOptionRejectsWrongColor(t *testing.T) {
	src := solid(black, 100, 100)
	defer src.Close()
	paint(src, image.Rect(10, 10, 40, 40), red)
	paint(src, image.Rect(14, 14, 36, 36), white)

	tpl := frame.Window(src, geometry.R(10, 10, 40, 40))
	defer tpl.Close()
	paint(tpl, image.Rect(0, 0, 30, 30), gocv.NewScalar(255, 0, 0, 0))
	paint(tpl, image.Rect(4, 4, 26, 26), white)

	res, err := Best(src, tpl, Options{Threshold: DefaultThreshold})
	require.NoError(t, err)
	require.NotNil(t, res, "intensity alone accepts the recolored frame")

	res, err = Best(src, tpl, Options{Threshold: DefaultThreshold, RGB: true})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResultOffset(t *testing.T) {
	r := *newResult(image.Pt(5, 6), 10, 20, 0.9)
	moved := r.Offset(geometry.Pt(100, 200))
	assert.Equal(t, geometry.Pt(110, 216), moved.Point)
	assert.Equal(t, geometry.R(105, 206, 115, 226), moved.Bounds())
	assert.Equal(t, 0.9, moved.Confidence)
	assert.Equal(t, geometry.Pt(10, 16), r.Point)

	all := OffsetAll([]Result{r, r}, geometry.Pt(1, 1))
	assert.Equal(t, geometry.Pt(11, 17), all[1].Point)
}
