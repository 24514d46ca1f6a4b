package engine

import (
	"errors"

	"github.com/lkarlslund/aircv/internal/frame"
	"github.com/lkarlslund/aircv/internal/match"
	"github.com/lkarlslund/aircv/internal/predict"
	"github.com/lkarlslund/aircv/internal/refine"
	"github.com/lkarlslund/aircv/pkg/template"
)

// Errors callers can test for with errors.Is. Not finding a template is not
// an error: the result is nil.
var (
	// ErrInvalidSize: the template does not fit in the searched image, or
	// one of them has no pixels. Always returned to the caller.
	ErrInvalidSize = frame.ErrInvalidSize
	// ErrPredictedAreaEmpty never leaves Match; it makes the engine fall back
	// to a full frame search. It is exported for callers of the strategies.
	ErrPredictedAreaEmpty = predict.ErrPredictedAreaEmpty
	// ErrNoValidRegions: ignore or focus rectangles left nothing to score.
	ErrNoValidRegions = refine.ErrNoValidRegions
	// ErrInvalidTemplate: the template descriptor failed validation.
	ErrInvalidTemplate = template.ErrInvalidTemplate
	// ErrNoRecordPos: a predicting strategy was asked to find a template
	// recorded without a tap position. The engine skips to the next strategy.
	ErrNoRecordPos = errors.New("template has no record position")
)

type (
	SizeError = frame.SizeError
	Result    = match.Result
)
