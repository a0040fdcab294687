package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrSubmissionInFlight is returned when Submit is called while an
	// earlier submission has not reached a final state yet.
	ErrSubmissionInFlight = errors.New("a submission is already in flight")

	// ErrCheckoutComplete is returned for any mutation after the session
	// has succeeded.
	ErrCheckoutComplete = errors.New("checkout has already completed")

	// ErrTourUnavailable is returned when the selected tour exists but is
	// not open for booking.
	ErrTourUnavailable = errors.New("tour is not open for booking")

	// ErrPartySizeLocked is returned when the party size is changed after
	// a booking has been created for the session.
	ErrPartySizeLocked = errors.New("party size cannot change once a booking exists")
)

type InvalidTransitionError struct {
	From State
	Op   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("operation %s is not allowed in state %s", e.Op, e.From)
}

type NotFoundError struct {
	TourID uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tour %d not found", e.TourID)
}

// ValidationError carries per-field messages for a draft or party size that
// failed validation. No collaborator is ever called when one is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("booking submission failed: %s", e.Err.Error())
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

type PaymentError struct {
	Reason string
	Err    error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment failed: %s: %s", e.Reason, e.Err.Error())
	}
	return fmt.Sprintf("payment failed: %s", e.Reason)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}
