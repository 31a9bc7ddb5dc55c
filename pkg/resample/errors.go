package resample

import "fmt"

// UnsupportedAffineError reports an input affine whose spatial block is
// not diagonal (sheared or rotated), which the resampler cannot handle.
type UnsupportedAffineError struct {
	// Path is the volume whose affine was rejected.
	Path string
}

func (e *UnsupportedAffineError) Error() string {
	msg := "resample: affine has non-zero off-diagonal spatial terms; " +
		"only diagonal (unsheared, unrotated) affines are supported"
	if e.Path != "" {
		msg = fmt.Sprintf("resample: %s: affine has non-zero off-diagonal spatial terms; "+
			"only diagonal (unsheared, unrotated) affines are supported", e.Path)
	}
	return msg
}

// UnsupportedOperationError reports an upsampling request on an axis made
// with a strategy that only supports downsampling.
type UnsupportedOperationError struct {
	// Strategy is the strategy that rejected the request.
	Strategy Strategy

	// Axis is the offending axis (0, 1 or 2).
	Axis int

	// Scale is the requested scale factor on that axis.
	Scale float64
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("resample: strategy %s cannot upsample: scale factor %.4f < 1 on axis %d",
		e.Strategy, e.Scale, e.Axis)
}
