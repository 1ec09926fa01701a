package store

import "github.com/pkg/errors"

var (
	// ErrHeightNotAvailable is returned when a query or proof request
	// targets a version that was pruned or has not been committed yet.
	ErrHeightNotAvailable = errors.New("height not available")

	// ErrProofGeneration is returned when the underlying tree cannot
	// produce a proof for a key at a committed version. This indicates a
	// framework defect and is never recovered from.
	ErrProofGeneration = errors.New("proof generation failed")

	// ErrInvalidProof is returned when proof verification fails.
	ErrInvalidProof = errors.New("invalid proof")
)
