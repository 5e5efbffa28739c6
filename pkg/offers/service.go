// Package offers sits between the HTTP consumers and the aggregator. It
// serves fresh-enough cached results, coalesces concurrent refreshes and
// records the cheapest offer of every run.
package offers

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"offer-hunter/pkg/cache"
	"offer-hunter/pkg/logger"
	"offer-hunter/pkg/models"
)

const resultKey = "offers"

type Aggregator interface {
	Aggregate(ctx context.Context) models.AggregatedResult
}

// Store is optional; without one every call runs the aggregator.
type Store interface {
	Get(key string) (*models.AggregatedResult, bool)
	Set(key string, result models.AggregatedResult) error
	RecordCheapest(runID string, offer models.Offer) error
	History(limit int) ([]cache.HistoryEntry, error)
}

type Service struct {
	agg   Aggregator
	store Store
	group singleflight.Group
}

func NewService(agg Aggregator, store Store) *Service {
	return &Service{agg: agg, store: store}
}

// Current returns the cached result when the store still considers it
// fresh, otherwise runs the aggregator.
func (s *Service) Current(ctx context.Context) models.AggregatedResult {
	if s.store != nil {
		if cached, ok := s.store.Get(resultKey); ok {
			logger.Dedup("Cache hit for %s", resultKey)
			return *cached
		}
	}
	return s.Refresh(ctx)
}

// Refresh runs the aggregator. Callers arriving while a run is in flight
// share its result. The run is detached from ctx so one client hanging up
// does not cancel it for the others.
func (s *Service) Refresh(ctx context.Context) models.AggregatedResult {
	v, _, shared := s.group.Do(resultKey, func() (any, error) {
		return s.run(context.WithoutCancel(ctx)), nil
	})
	if shared {
		logger.Dedup("Joined in-flight aggregation run")
	}
	return v.(models.AggregatedResult)
}

func (s *Service) run(ctx context.Context) models.AggregatedResult {
	runID := uuid.NewString()
	start := time.Now()
	result := s.agg.Aggregate(ctx)

	log.Printf("[run %s] finished in %s", runID, time.Since(start).Round(time.Millisecond))

	if s.store == nil {
		return result
	}
	if err := s.store.Set(resultKey, result); err != nil {
		log.Printf("[run %s] cache write failed: %v", runID, err)
	}
	if result.Cheapest != nil {
		if err := s.store.RecordCheapest(runID, *result.Cheapest); err != nil {
			log.Printf("[run %s] history write failed: %v", runID, err)
		}
	}
	return result
}

// History lists the cheapest offer of recent runs, newest first.
func (s *Service) History(limit int) ([]cache.HistoryEntry, error) {
	if s.store == nil {
		return []cache.HistoryEntry{}, nil
	}
	return s.store.History(limit)
}

// StartRefresher refreshes immediately and then on every tick until ctx is
// cancelled.
func (s *Service) StartRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Background refresh every %s", interval)
	s.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Background refresh stopped")
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}
