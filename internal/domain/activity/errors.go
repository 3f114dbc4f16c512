package activity

import "errors"

// ErrInvalidInput is returned for a nil or incomplete entry.
var ErrInvalidInput = errors.New("invalid input")
