package m

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch reports a parameter vector or matrix whose size does not
	// agree with the layer size schedule.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrDegenerateInput reports training or prediction input with no examples,
	// no classes, or an invalid layer size schedule.
	ErrDegenerateInput = errors.New("degenerate input")
)

// ShapeError carries the offending dimension. It unwraps to ErrShapeMismatch.
type ShapeError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: want %d, got %d", ErrShapeMismatch, e.What, e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

func degenerate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDegenerateInput, fmt.Sprintf(format, args...))
}
