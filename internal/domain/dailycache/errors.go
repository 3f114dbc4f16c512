package dailycache

import "errors"

// ErrCorruptSnapshot indicates a persisted cache that cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt daily cache snapshot")
