package ibcsim

import "github.com/pkg/errors"

// ErrLifecyclePhaseViolation is returned when a block lifecycle operation is
// invoked out of order, e.g. delivering messages before the block has begun.
var ErrLifecyclePhaseViolation = errors.New("block lifecycle phase violation")
