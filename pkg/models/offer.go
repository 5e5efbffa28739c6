package models

import "time"

// Offer is a single listing found at one marketplace. Prices are in INR.
type Offer struct {
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	ProductURL string    `json:"productUrl"`
	FetchedAt  time.Time `json:"fetchedAt"`
	Source     string    `json:"source"`
}

type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Reason classifies why a source produced no usable offers. It is kept out
// of the JSON shape and only feeds logs and metrics.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonEmpty    Reason = "empty"
	ReasonTimeout  Reason = "timeout"
	ReasonCanceled Reason = "canceled"
	ReasonUpstream Reason = "upstream"
	ReasonBlocked  Reason = "blocked"
	ReasonPanic    Reason = "panic"
)

// SourceResult is the outcome of querying one marketplace.
type SourceResult struct {
	Source    string    `json:"source"`
	Status    Status    `json:"status"`
	Offers    []Offer   `json:"offers"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
	Reason    Reason    `json:"-"`
}

// AggregatedResult is what one aggregation run hands to its consumers.
type AggregatedResult struct {
	Sources  []SourceResult `json:"sources"`
	Cheapest *Offer         `json:"cheapest,omitempty"`
}

const NoOffersMessage = "no qualifying offers found"

// Succeeded builds an ok result. An empty offer list is still ok but carries
// a message so consumers can explain the gap.
func Succeeded(source string, fetchedAt time.Time, offers []Offer) SourceResult {
	if offers == nil {
		offers = []Offer{}
	}
	res := SourceResult{
		Source:    source,
		Status:    StatusOK,
		Offers:    offers,
		FetchedAt: fetchedAt,
	}
	if len(offers) == 0 {
		res.Error = NoOffersMessage
		res.Reason = ReasonEmpty
	}
	return res
}

// Failed builds an error result; it never carries offers.
func Failed(source string, fetchedAt time.Time, reason Reason, message string) SourceResult {
	if reason == ReasonNone {
		reason = ReasonUpstream
	}
	if message == "" {
		message = "unavailable"
	}
	return SourceResult{
		Source:    source,
		Status:    StatusError,
		Offers:    []Offer{},
		Error:     message,
		FetchedAt: fetchedAt,
		Reason:    reason,
	}
}
