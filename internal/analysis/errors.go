package analysis

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of them.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNumericFault = errors.New("numeric fault")
	ErrConvergence  = errors.New("fit did not converge")
)

// Pipeline stage names used in StageError.
const (
	StageSegment  = "segment"
	StageConvert  = "convert"
	StageSmooth   = "smooth"
	StageGuess    = "guess"
	StageFit      = "fit"
	StageGoodness = "goodness"
)

// StageError attributes a failure to the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Kind returns a short machine-readable name for the wrapped error kind.
func (e *StageError) Kind() string {
	return ErrorKind(e.Err)
}

// ErrorKind maps err onto "invalid_input", "numeric_fault", "convergence" or "unknown".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNumericFault):
		return "numeric_fault"
	case errors.Is(err, ErrConvergence):
		return "convergence"
	default:
		return "unknown"
	}
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func numericFault(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNumericFault, fmt.Sprintf(format, args...))
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
