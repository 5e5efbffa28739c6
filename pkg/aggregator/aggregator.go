// Package aggregator fans one product query out to every configured
// marketplace, collects one result per source in configuration order and
// picks the cheapest offer.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"offer-hunter/pkg/logger"
	"offer-hunter/pkg/models"
)

// Adapter queries one marketplace for a query fixed at construction time.
// FetchOffers must report failures through the returned SourceResult and
// should stop work once ctx is done.
type Adapter interface {
	Name() string
	FetchOffers(ctx context.Context) models.SourceResult
}

// Recorder receives per-source and per-run measurements.
type Recorder interface {
	RecordSource(result models.SourceResult, elapsed time.Duration)
	RecordRun(result models.AggregatedResult, elapsed time.Duration)
}

const (
	DefaultSourceTimeout = 20 * time.Second
	DefaultRunTimeout    = 30 * time.Second
)

// Causes attached to the deadlines this package sets, so a timeout can be
// told apart from one the caller imposed.
var (
	errSourceDeadline = errors.New("source timeout")
	errRunDeadline    = errors.New("run timeout")
)

type Aggregator struct {
	adapters      []Adapter
	sourceTimeout time.Duration
	runTimeout    time.Duration
	recorder      Recorder
	now           func() time.Time
}

type Option func(*Aggregator)

// WithSourceTimeout bounds each adapter call. Zero disables the bound.
func WithSourceTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.sourceTimeout = d }
}

// WithRunTimeout bounds the whole fan-out. Zero disables the bound.
func WithRunTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.runTimeout = d }
}

func WithRecorder(r Recorder) Option {
	return func(a *Aggregator) { a.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New checks the adapter set once so a bad configuration fails at startup
// rather than on every run.
func New(adapters []Adapter, opts ...Option) (*Aggregator, error) {
	seen := make(map[string]int, len(adapters))
	for i, ad := range adapters {
		if ad == nil {
			return nil, fmt.Errorf("adapter %d is nil", i)
		}
		name := ad.Name()
		if name == "" {
			return nil, fmt.Errorf("adapter %d has no name", i)
		}
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("adapter %q configured twice (positions %d and %d)", name, prev, i)
		}
		seen[name] = i
	}

	a := &Aggregator{
		adapters:      append([]Adapter(nil), adapters...),
		sourceTimeout: DefaultSourceTimeout,
		runTimeout:    DefaultRunTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.sourceTimeout < 0 || a.runTimeout < 0 {
		return nil, errors.New("timeouts must not be negative")
	}
	return a, nil
}

// Sources lists adapter names in configuration order.
func (a *Aggregator) Sources() []string {
	names := make([]string, len(a.adapters))
	for i, ad := range a.adapters {
		names[i] = ad.Name()
	}
	return names
}

type outcome struct {
	index  int
	result models.SourceResult
}

// Aggregate runs every adapter concurrently and always returns a well-formed
// result, whatever the individual sources do.
func (a *Aggregator) Aggregate(ctx context.Context) models.AggregatedResult {
	start := a.now()

	if a.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, a.runTimeout, errRunDeadline)
		defer cancel()
	}

	// fetch always delivers exactly one outcome, so the join below needs no
	// deadline of its own.
	out := make(chan outcome, len(a.adapters))
	for i, ad := range a.adapters {
		go func(i int, ad Adapter) {
			out <- outcome{index: i, result: a.fetch(ctx, ad)}
		}(i, ad)
	}

	sources := make([]models.SourceResult, len(a.adapters))
	for range a.adapters {
		o := <-out
		sources[o.index] = o.result
	}

	result := models.AggregatedResult{
		Sources:  sources,
		Cheapest: Cheapest(sources),
	}

	elapsed := a.now().Sub(start)
	if a.recorder != nil {
		a.recorder.RecordRun(result, elapsed)
	}
	if result.Cheapest != nil {
		log.Printf("[AGGREGATOR] %d sources in %s, cheapest %.2f at %s", len(sources), elapsed.Round(time.Millisecond), result.Cheapest.Price, result.Cheapest.Source)
	} else {
		log.Printf("[AGGREGATOR] %d sources in %s, no offers", len(sources), elapsed.Round(time.Millisecond))
	}
	return result
}

func (a *Aggregator) fetch(parent context.Context, ad Adapter) models.SourceResult {
	name := ad.Name()
	ctx, cancel := parent, context.CancelFunc(func() {})
	if a.sourceTimeout > 0 {
		ctx, cancel = context.WithTimeoutCause(parent, a.sourceTimeout, errSourceDeadline)
	}
	// Cancelling on return tells an abandoned adapter to release its
	// connections; its late result lands in the buffered channel and is lost.
	defer cancel()

	started := a.now().UTC()
	done := make(chan models.SourceResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- models.Failed(name, started, models.ReasonPanic, fmt.Sprintf("adapter panicked: %v", r))
			}
		}()
		done <- ad.FetchOffers(ctx)
	}()

	var res models.SourceResult
	select {
	case res = <-done:
		res = a.conform(name, started, res, ctx.Err())
	case <-ctx.Done():
		res = a.abandoned(ctx, name, started)
	}

	elapsed := a.now().Sub(started)
	if a.recorder != nil {
		a.recorder.RecordSource(res, elapsed)
	}
	if res.Status == models.StatusError {
		// Blocked or down sources fail the same way on every run.
		logger.Dedup("[AGGREGATOR] %s failed: %s", name, res.Error)
	} else {
		log.Printf("[AGGREGATOR] %s returned %d offers in %s", name, len(res.Offers), elapsed.Round(time.Millisecond))
	}
	return res
}

func (a *Aggregator) abandoned(ctx context.Context, name string, started time.Time) models.SourceResult {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.Failed(name, started, models.ReasonCanceled, "canceled before the source responded")
	}
	switch context.Cause(ctx) {
	case errSourceDeadline:
		return models.Failed(name, started, models.ReasonTimeout, fmt.Sprintf("timed out after %s", a.sourceTimeout))
	case errRunDeadline:
		return models.Failed(name, started, models.ReasonTimeout, fmt.Sprintf("timed out: run deadline of %s reached", a.runTimeout))
	default:
		return models.Failed(name, started, models.ReasonTimeout, "timed out: caller deadline reached")
	}
}

// conform enforces the result invariants regardless of what the adapter
// returned.
func (a *Aggregator) conform(name string, started time.Time, res models.SourceResult, ctxErr error) models.SourceResult {
	fetchedAt := res.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = started
	}
	fetchedAt = fetchedAt.UTC()

	switch res.Status {
	case models.StatusError:
		reason, msg := res.Reason, res.Error
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			reason = models.ReasonTimeout
			msg = "timed out: " + msg
		}
		return models.Failed(name, fetchedAt, reason, msg)
	case models.StatusOK:
		offers := make([]models.Offer, 0, len(res.Offers))
		seen := make(map[string]struct{}, len(res.Offers))
		for _, o := range res.Offers {
			if !validPrice(o.Price) || o.Name == "" || o.ProductURL == "" {
				continue
			}
			if _, dup := seen[o.ProductURL]; dup {
				continue
			}
			seen[o.ProductURL] = struct{}{}
			o.Source = name
			if o.FetchedAt.IsZero() {
				o.FetchedAt = fetchedAt
			}
			o.FetchedAt = o.FetchedAt.UTC()
			offers = append(offers, o)
		}
		ok := models.Succeeded(name, fetchedAt, offers)
		if len(offers) == 0 && res.Error != "" {
			ok.Error = res.Error
		}
		return ok
	default:
		return models.Failed(name, fetchedAt, models.ReasonUpstream, fmt.Sprintf("adapter returned unknown status %q", res.Status))
	}
}
