package errors

import (
	"fmt"
)

var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicateCIK = fmt.Errorf("duplicate cik")
	ErrInvalidInput = fmt.Errorf("invalid input")
	// ErrRetriesExhausted is returned when the search call kept failing
	// until the backoff cap was reached. The work item stays queued.
	ErrRetriesExhausted = fmt.Errorf("retries exhausted")
)
