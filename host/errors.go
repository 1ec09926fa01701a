package host

import "github.com/pkg/errors"

var (
	// ErrReproducibility is returned when a backend's pure generation
	// functions produce different output for identical inputs.
	ErrReproducibility = errors.New("non-deterministic block generation")

	// ErrInvalidHeader is returned when a header fails client verification.
	ErrInvalidHeader = errors.New("invalid header")
)
