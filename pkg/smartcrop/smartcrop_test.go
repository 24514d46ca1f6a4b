package smartcrop

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/pkg/geometry"
)

func blank(w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8UC3)
}

func TestFallbackSquare(t *testing.T) {
	img := blank(400, 300)
	defer img.Close()

	sub, r, err := Crop(img, geometry.Pt(200, 150), DefaultOptions())
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, geometry.R(150, 100, 250, 200), r)
	assert.Equal(t, 100, sub.Cols())
	assert.Equal(t, 100, sub.Rows())
}

func TestFallbackAtEdgeIsClamped(t *testing.T) {
	img := blank(400, 300)
	defer img.Close()

	sub, r, err := Crop(img, geometry.Pt(10, 10), DefaultOptions())
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, geometry.R(-40, -40, 60, 60), r)
	assert.Equal(t, 60, sub.Cols())
	assert.Equal(t, 60, sub.Rows())
}

func TestTapOutsideImageIsMovedInside(t *testing.T) {
	img := blank(400, 300)
	defer img.Close()

	sub, r, err := Crop(img, geometry.Pt(-50, 500), DefaultOptions())
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, geometry.R(-50, 249, 50, 349), r)
	assert.False(t, sub.Empty())
	assert.Equal(t, 50, sub.Cols())
	assert.Equal(t, 50, sub.Rows())
}

func TestCropFindsTexturedPatch(t *testing.T) {
	img := blank(400, 300)
	defer img.Close()
	patch := img.Region(image.Rect(100, 100, 160, 160))
	gocv.RandU(&patch, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(255, 255, 255, 0))
	patch.Close()

	for _, op := range []EdgeOperator{Sobel, Laplacian} {
		opts := DefaultOptions()
		opts.Operator = op
		sub, r, err := Crop(img, geometry.Pt(130, 130), opts)
		require.NoError(t, err)
		assert.True(t, r.Contains(geometry.R(110, 110, 150, 150)), "%s: %v", op, r)
		assert.True(t, geometry.R(80, 80, 180, 180).Contains(r), "%s: %v", op, r)
		assert.Equal(t, r.Dx(), sub.Cols())
		sub.Close()
	}
}

func TestCandidatesFilter(t *testing.T) {
	binary := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 400, 500, gocv.MatTypeCV8UC1)
	defer binary.Close()
	fill := func(r image.Rectangle) {
		region := binary.Region(r)
		region.SetTo(gocv.NewScalar(255, 0, 0, 0))
		region.Close()
	}
	fill(image.Rect(10, 10, 60, 50))     // kept
	fill(image.Rect(100, 10, 200, 20))   // thin
	fill(image.Rect(250, 10, 260, 20))   // small
	fill(image.Rect(10, 300, 490, 340))  // very long
	fill(image.Rect(300, 100, 400, 150)) // kept

	cs := Candidates(binary, DefaultOptions())
	require.Len(t, cs, 2)
	rects := []geometry.Rect{cs[0].Rect, cs[1].Rect}
	assert.Contains(t, rects, geometry.R(10, 10, 60, 50))
	assert.Contains(t, rects, geometry.R(300, 100, 400, 150))
}

func TestSmallestContaining(t *testing.T) {
	cs := []Candidate{
		{Rect: geometry.R(0, 0, 200, 200), Area: 40000},
		{Rect: geometry.R(40, 40, 80, 80), Area: 1600},
		{Rect: geometry.R(30, 30, 90, 90), Area: 1600},
		{Rect: geometry.R(100, 100, 120, 120), Area: 400},
	}
	r, ok := smallestContaining(cs, geometry.Pt(50, 50))
	require.True(t, ok)
	assert.Equal(t, geometry.R(40, 40, 80, 80), r)

	// on the border is not inside
	_, ok = smallestContaining(cs[1:2], geometry.Pt(40, 50))
	assert.False(t, ok)
}

func TestShrink(t *testing.T) {
	assert.Equal(t, geometry.R(50, 150, 150, 250), shrink(geometry.R(0, 0, 300, 300), geometry.Pt(100, 200), 100))
	assert.Equal(t, geometry.R(90, 0, 150, 60), shrink(geometry.R(90, 0, 300, 300), geometry.Pt(100, 10), 100))
	assert.Equal(t, geometry.R(5, 5, 90, 90), shrink(geometry.R(5, 5, 90, 90), geometry.Pt(50, 50), 100))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	o := DefaultOptions()
	o.Operator = "prewitt"
	assert.Error(t, o.Validate())
	o = DefaultOptions()
	o.ErodeKernel = 0
	assert.Error(t, o.Validate())
}

func TestEmptyImage(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	_, _, err := Crop(empty, geometry.Pt(1, 1), DefaultOptions())
	assert.True(t, errors.Is(err, ErrEmptyImage))
}
