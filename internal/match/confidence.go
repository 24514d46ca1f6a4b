package match

import (
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/internal/frame"
)

// Border added around the search image before the color check, so small
// misalignments of the located window do not cost confidence.
const rgbBorder = 10

// RGBConfidence compares a located window with the search image of the same
// size channel by channel in HSV and returns the weakest channel's score.
func RGBConfidence(window, search gocv.Mat) float64 {
	if window.Cols() != search.Cols() || window.Rows() != search.Rows() {
		return 0
	}
	win, sch := frame.ToBGR(window), frame.ToBGR(search)
	defer win.Close()
	defer sch.Close()

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(sch, &padded, rgbBorder, rgbBorder, rgbBorder, rgbBorder, gocv.BorderReplicate, color.RGBA{})

	winHSV, schHSV := gocv.NewMat(), gocv.NewMat()
	defer winHSV.Close()
	defer schHSV.Close()
	gocv.CvtColor(win, &winHSV, gocv.ColorBGRToHSV)
	gocv.CvtColor(padded, &schHSV, gocv.ColorBGRToHSV)

	winCh, schCh := gocv.Split(winHSV), gocv.Split(schHSV)
	defer closeAll(winCh)
	defer closeAll(schCh)

	// Pin the hue range on both sides so tiny hue differences on a nearly
	// uniform patch are not stretched to the full scale.
	if winHSV.Cols() > 1 {
		for _, ch := range []gocv.Mat{winCh[0], schCh[0]} {
			ch.SetUCharAt(0, 0, 0)
			ch.SetUCharAt(0, 1, 255)
		}
	}

	confidence := 1.0
	for i := range winCh {
		confidence = math.Min(confidence, channelConfidence(schCh[i], winCh[i]))
	}
	return clamp01(confidence)
}

// channelConfidence finds the best placement of a single channel window
// inside the padded search channel.
func channelConfidence(padded, window gocv.Mat) float64 {
	pFlat, wFlat := isFlat(padded), isFlat(window)
	if pFlat && wFlat {
		return 1 - math.Abs(padded.Mean().Val1-window.Mean().Val1)/255
	}
	method := gocv.TmCcoeffNormed
	if pFlat || wFlat {
		method = gocv.TmCcorrNormed
	}
	res := gocv.NewMat()
	defer res.Close()
	empty := gocv.NewMat()
	defer empty.Close()
	gocv.MatchTemplate(padded, window, &res, method, empty)
	_, maxVal, _, _ := gocv.MinMaxLoc(res)
	if math.IsNaN(float64(maxVal)) {
		return 0
	}
	return float64(maxVal)
}

func closeAll(mats []gocv.Mat) {
	for _, m := range mats {
		m.Close()
	}
}
