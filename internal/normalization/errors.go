package normalization

import "errors"

var (
	// ErrMalformedEvent marks a raw event that is missing a required field or
	// carries an out-of-range value. Such events are skipped, never fatal.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrInvalidOrdering is returned when transactions are not ordered by
	// occurrence time descending.
	ErrInvalidOrdering = errors.New("transactions are not in descending time order")

	// ErrIncompletePolicy is returned when a policy lacks a rule for a known kind.
	ErrIncompletePolicy = errors.New("reward policy has no rule for kind")
)
