package fuzzy

import "errors"

var (
	// ErrConfiguration is returned while building the model: bad shapes,
	// bad universes, duplicate terms or rules referencing unknown names.
	ErrConfiguration = errors.New("fuzzy configuration error")

	// ErrInvalidInput is returned per computation when the supplied crisp
	// inputs do not match what the rule base consumes.
	ErrInvalidInput = errors.New("fuzzy invalid input")
)
