package symptom

import "errors"

var (
	// ErrUnknownKind indicates a symptom kind outside the supported set.
	ErrUnknownKind = errors.New("unknown symptom kind")
	// ErrInvalidEntry indicates a raw value that does not fit its kind.
	ErrInvalidEntry = errors.New("invalid symptom entry")
	// ErrInvalidInput indicates an invalid symptom request.
	ErrInvalidInput = errors.New("invalid symptom input")
)
