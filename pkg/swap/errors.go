package swap

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRate is returned when a swap is started without a committed quote
	ErrNoRate = errors.New("no exchange rate available")

	// ErrNoOffers is wrapped when the pricing service answers with an empty list
	ErrNoOffers = errors.New("pricing service returned no offers")

	// errStaleResponse marks a response whose request was superseded. It is
	// only logged, never committed.
	errStaleResponse = errors.New("stale rate response discarded")
)

// RateFetchError wraps a failed quote request. It is stored in State.Error
// and goes away as soon as the inputs change.
type RateFetchError struct {
	From string
	To   string
	Err  error
}

func (e *RateFetchError) Error() string {
	return fmt.Sprintf("failed to get exchange rate %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *RateFetchError) Unwrap() error {
	return e.Err
}
