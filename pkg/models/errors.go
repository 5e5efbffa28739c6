package models

import (
	"context"
	"errors"
)

var (
	// ErrBlocked means the marketplace served a bot check instead of results.
	ErrBlocked = errors.New("blocked by marketplace bot protection")
	// ErrNoResults means the page loaded but held no recognizable listings.
	ErrNoResults = errors.New("no listings on results page")
)

// ReasonFor maps an adapter error onto a failure reason.
func ReasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrBlocked):
		return ReasonBlocked
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return ReasonUpstream
	}
}
