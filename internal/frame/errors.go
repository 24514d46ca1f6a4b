package frame

import (
	"errors"
	"fmt"
)

// ErrInvalidSize is returned when a search image does not fit in its
// source, or when either has no pixels.
var ErrInvalidSize = errors.New("invalid image size")

// SizeError describes a size precondition failure. It matches
// ErrInvalidSize under errors.Is.
type SizeError struct {
	Source [2]int // width, height
	Search [2]int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("search image %dx%d does not fit in source %dx%d",
		e.Search[0], e.Search[1], e.Source[0], e.Source[1])
}

func (e *SizeError) Is(target error) bool {
	return target == ErrInvalidSize
}

// CheckFits returns a *SizeError unless a search image of sw*sh fits inside
// a source of w*h and both are non-empty.
func CheckFits(w, h, sw, sh int) error {
	if w <= 0 || h <= 0 || sw <= 0 || sh <= 0 || sw > w || sh > h {
		return &SizeError{Source: [2]int{w, h}, Search: [2]int{sw, sh}}
	}
	return nil
}
