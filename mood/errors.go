package mood

import "errors"

var (
	ErrUnknownKind     = errors.New("unknown mood kind")
	ErrInvalidLocation = errors.New("invalid location")
	ErrEmptyMessage    = errors.New("empty message")
	ErrMessageTooLong  = errors.New("message too long")
)
