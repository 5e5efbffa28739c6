// Package base holds what every marketplace adapter shares: the fixed
// product query, the browser identity and a per-marketplace rate limit.
package base

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"offer-hunter/pkg/normalize"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type Options struct {
	Query             string
	Keywords          []string
	UserAgent         string
	RequestsPerMinute int
	// DebugDir receives screenshots and page dumps from browser-driven
	// adapters when a run fails. Empty disables dumps.
	DebugDir string
}

func (o Options) Agent() string {
	if o.UserAgent == "" {
		return DefaultUserAgent
	}
	return o.UserAgent
}

// Limiter allows RequestsPerMinute requests with a burst of one. Zero or
// less means unlimited.
func (o Options) Limiter() *rate.Limiter {
	if o.RequestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(o.RequestsPerMinute)), 1)
}

// Normalizer binds the shared keywords to one marketplace.
func (o Options) Normalizer(source, baseURL string) normalize.Normalizer {
	return normalize.Normalizer{
		Source:   source,
		BaseURL:  baseURL,
		Keywords: o.Keywords,
	}
}

// Wait blocks until the limiter admits one request or ctx ends.
func Wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}
