package resize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/internal/frame"
	"github.com/lkarlslund/aircv/pkg/geometry"
)

func TestMinFitHalves(t *testing.T) {
	w, h := Dimensions(MinFit, 100, 40, geometry.Res(1280, 720), geometry.Res(640, 360), geometry.Res(960, 640))
	assert.Equal(t, 50, w)
	assert.Equal(t, 20, h)
}

func TestMinFitDefaultDesign(t *testing.T) {
	withDefault := func(d geometry.Resolution) [2]int {
		w, h := MinFit.Dimensions(200, 100, geometry.Res(1920, 1080), geometry.Res(1280, 720), d)
		return [2]int{w, h}
	}
	assert.Equal(t, withDefault(DefaultDesign()), withDefault(geometry.Resolution{}))
}

func TestEqualResolutionIsIdentity(t *testing.T) {
	stretch := StrategyFunc(func(w, h int, _, _, _ geometry.Resolution) (int, int) {
		return w * 3, h * 3
	})
	for _, res := range []geometry.Resolution{geometry.Res(1, 1), geometry.Res(1280, 720), geometry.Res(720, 1280), geometry.Res(3000, 7)} {
		for _, s := range []Strategy{MinFit, None, stretch} {
			w, h := Dimensions(s, 37, 11, res, res, geometry.Res(960, 640))
			assert.Equal(t, 37, w)
			assert.Equal(t, 11, h)
		}
	}
}

func TestUnknownResolutionIsIdentity(t *testing.T) {
	w, h := Dimensions(MinFit, 37, 11, geometry.Resolution{}, geometry.Res(640, 360), geometry.Resolution{})
	assert.Equal(t, [2]int{37, 11}, [2]int{w, h})
}

func TestNoneStrategy(t *testing.T) {
	w, h := Dimensions(None, 80, 60, geometry.Res(2560, 1440), geometry.Res(640, 360), geometry.Resolution{})
	assert.Equal(t, [2]int{80, 60}, [2]int{w, h})
}

func TestByName(t *testing.T) {
	s, err := ByName("min_fit")
	require.NoError(t, err)
	assert.NotNil(t, s)
	s, err = ByName("none")
	require.NoError(t, err)
	w, _ := s.Dimensions(10, 10, geometry.Res(10, 10), geometry.Res(20, 20), geometry.Resolution{})
	assert.Equal(t, 10, w)
	_, err = ByName("bicubic-magic")
	assert.Error(t, err)
}

func TestTemplateResizesMat(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 40, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	out, err := Template(img, MinFit, geometry.Res(1280, 720), geometry.Res(640, 360), geometry.Res(960, 640))
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, 50, out.Cols())
	assert.Equal(t, 20, out.Rows())

	same, err := Template(img, MinFit, geometry.Res(640, 360), geometry.Res(640, 360), geometry.Resolution{})
	require.NoError(t, err)
	defer same.Close()
	assert.Equal(t, 100, same.Cols())
	assert.Equal(t, 40, same.Rows())
}

func TestTemplateTooSmall(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 1, 1, gocv.MatTypeCV8UC3)
	defer img.Close()

	_, err := Template(img, MinFit, geometry.Res(1280, 720), geometry.Res(640, 360), geometry.Resolution{})
	assert.True(t, errors.Is(err, frame.ErrInvalidSize))
}
