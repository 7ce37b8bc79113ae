package domain

import "errors"

// Error taxonomy shared by the generation pipeline. Packages wrap these with
// fmt.Errorf("%w: ...") so callers can classify with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProvider          = errors.New("provider error")
	ErrMalformedPlan     = errors.New("malformed plan")
	ErrPersistence       = errors.New("persistence error")
	ErrInvalidTransition = errors.New("invalid plan status transition")
)
