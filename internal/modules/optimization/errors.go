package optimization

import "errors"

// Errors returned by the aligner, the estimators and the service. Callers
// match them with errors.Is; the wrapped message carries the detail.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInsufficientData      = errors.New("insufficient data")
	ErrNoOverlap             = errors.New("no overlapping dates")
	ErrDegenerateCovariance  = errors.New("degenerate covariance matrix")
	ErrFrontierConfiguration = errors.New("invalid frontier configuration")
	ErrInternal              = errors.New("internal optimizer failure")
)

// IsRequestError reports whether err means the request itself cannot be
// served, as opposed to an internal failure.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrNoOverlap) ||
		errors.Is(err, ErrDegenerateCovariance) ||
		errors.Is(err, ErrFrontierConfiguration)
}
