package offers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offer-hunter/pkg/cache"
	"offer-hunter/pkg/models"
)

type countingAggregator struct {
	calls atomic.Int32
	delay time.Duration
	price float64
}

func (c *countingAggregator) Aggregate(ctx context.Context) models.AggregatedResult {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	now := time.Now().UTC()
	if c.price == 0 {
		return models.AggregatedResult{Sources: []models.SourceResult{models.Failed("Croma", now, models.ReasonTimeout, "timed out")}}
	}
	offer := models.Offer{Name: "IFB 9 kg", Price: c.price, ProductURL: "https://www.croma.com/p/1", FetchedAt: now, Source: "Croma"}
	return models.AggregatedResult{
		Sources:  []models.SourceResult{models.Succeeded("Croma", now, []models.Offer{offer})},
		Cheapest: &offer,
	}
}

func newStore(t *testing.T, ttl time.Duration) *cache.Cache {
	t.Helper()
	c, err := cache.New(":memory:", ttl)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCurrent_WithoutStoreAlwaysRuns(t *testing.T) {
	agg := &countingAggregator{price: 100}
	svc := NewService(agg, nil)

	svc.Current(context.Background())
	svc.Current(context.Background())

	assert.Equal(t, int32(2), agg.calls.Load())

	history, err := svc.History(5)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCurrent_ServesFreshCache(t *testing.T) {
	agg := &countingAggregator{price: 34990}
	svc := NewService(agg, newStore(t, time.Hour))

	first := svc.Current(context.Background())
	second := svc.Current(context.Background())

	assert.Equal(t, int32(1), agg.calls.Load())
	require.NotNil(t, second.Cheapest)
	assert.Equal(t, first.Cheapest.Price, second.Cheapest.Price)
}

func TestCurrent_ZeroTTLRunsEveryTime(t *testing.T) {
	agg := &countingAggregator{price: 34990}
	svc := NewService(agg, newStore(t, 0))

	svc.Current(context.Background())
	svc.Current(context.Background())

	assert.Equal(t, int32(2), agg.calls.Load())
}

func TestRefresh_CoalescesConcurrentCallers(t *testing.T) {
	agg := &countingAggregator{price: 100, delay: 100 * time.Millisecond}
	svc := NewService(agg, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := svc.Refresh(context.Background())
			assert.NotNil(t, res.Cheapest)
		}()
	}
	wg.Wait()

	assert.Less(t, agg.calls.Load(), int32(5))
}

func TestRefresh_DetachedFromCallerCancel(t *testing.T) {
	var sawCancel atomic.Bool
	agg := aggregatorFunc(func(ctx context.Context) models.AggregatedResult {
		time.Sleep(30 * time.Millisecond)
		sawCancel.Store(ctx.Err() != nil)
		return models.AggregatedResult{Sources: []models.SourceResult{}}
	})
	svc := NewService(agg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Refresh(ctx)

	assert.False(t, sawCancel.Load())
}

type aggregatorFunc func(ctx context.Context) models.AggregatedResult

func (f aggregatorFunc) Aggregate(ctx context.Context) models.AggregatedResult { return f(ctx) }

func TestRefresh_RecordsHistoryOnlyWithCheapest(t *testing.T) {
	store := newStore(t, 0)
	withOffer := NewService(&countingAggregator{price: 31990}, store)
	withoutOffer := NewService(&countingAggregator{}, store)

	withOffer.Refresh(context.Background())
	withoutOffer.Refresh(context.Background())
	withOffer.Refresh(context.Background())

	history, err := withOffer.History(10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 31990.0, history[0].Offer.Price)
	assert.NotEqual(t, history[0].RunID, history[1].RunID)
}

type failingStore struct{}

func (failingStore) Get(string) (*models.AggregatedResult, bool) { return nil, false }
func (failingStore) Set(string, models.AggregatedResult) error  { return errors.New("disk full") }
func (failingStore) RecordCheapest(string, models.Offer) error  { return errors.New("disk full") }
func (failingStore) History(int) ([]cache.HistoryEntry, error)  { return nil, errors.New("disk full") }

func TestRefresh_StoreFailuresDoNotFailRun(t *testing.T) {
	svc := NewService(&countingAggregator{price: 5}, failingStore{})

	res := svc.Current(context.Background())

	require.NotNil(t, res.Cheapest)
	_, err := svc.History(1)
	assert.Error(t, err)
}

func TestStartRefresher(t *testing.T) {
	agg := &countingAggregator{price: 100}
	svc := NewService(agg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartRefresher(ctx, 20*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return agg.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}
