package bucket

import "errors"

var (
	// ErrInvalidRange indicates a bucket whose end precedes its start.
	ErrInvalidRange = errors.New("bucket end before start")
	// ErrZeroCount indicates a stored category count that is not positive.
	ErrZeroCount = errors.New("bucket stores non-positive category count")
	// ErrTotalMismatch indicates a total that differs from the sum of counts.
	ErrTotalMismatch = errors.New("bucket total does not match category counts")
)
