package types

import (
	"errors"
	"fmt"
)

// ErrContractViolation marks malformed input that indicates a programming error.
// Such errors are never retried.
var ErrContractViolation = errors.New("contract violation")

var (
	ErrTimestampOutOfRange    = fmt.Errorf("%w: timestamp out of range", ErrContractViolation)
	ErrIllegalTimeRange       = fmt.Errorf("%w: illegal time range", ErrContractViolation)
	ErrUnsupportedCombineMode = fmt.Errorf("%w: unsupported combine mode", ErrContractViolation)
	ErrUnsupportedSmoothing   = fmt.Errorf("%w: unsupported smoothing", ErrContractViolation)
	ErrEmptyInput             = fmt.Errorf("%w: empty input", ErrContractViolation)
)
