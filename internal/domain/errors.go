package domain

import "errors"

var (
	// ErrInvalidScaleFactor indicates a shrink ratio outside (0, 1).
	ErrInvalidScaleFactor = errors.New("domain: scale factor must be in (0, 1)")

	// ErrNilResidual indicates a General domain without a residual function.
	ErrNilResidual = errors.New("domain: residual function is required")
)
