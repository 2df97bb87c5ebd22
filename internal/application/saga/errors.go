package saga

import (
	"errors"
	"fmt"

	domsaga "github.com/minicommerce/fulfillment/internal/domain/saga"
)

var (
	ErrCancelTooLate   = errors.New("saga: cannot cancel after stock is reserved")
	ErrAlreadyFinished = errors.New("saga: already in a terminal state")
)

// Kind classifies a step failure per the retry policy: validation and
// rejection are never retried, transient failures are retried with backoff,
// fatal means the retry ceiling was exhausted or the state is unrecoverable.
type Kind string

const (
	KindValidation Kind = "validation"
	KindRejection  Kind = "rejection"
	KindTransient  Kind = "transient"
	KindFatal      Kind = "fatal"
)

// StepError carries the order ID and step name for traceability. No step
// failure is surfaced without both.
type StepError struct {
	OrderID string
	Step    domsaga.Step
	Kind    Kind
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("saga %s: step %s: %s: %v", e.OrderID, e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepError(kind Kind, orderID string, step domsaga.Step, err error) *StepError {
	return &StepError{OrderID: orderID, Step: step, Kind: kind, Err: err}
}

// IsValidation reports whether err is a validation-class step failure.
func IsValidation(err error) bool {
	var se *StepError
	return errors.As(err, &se) && se.Kind == KindValidation
}
