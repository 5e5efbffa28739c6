package models

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSucceeded_EmptyIsOkWithMessage(t *testing.T) {
	res := Succeeded("Croma", time.Now(), nil)

	assert.Equal(t, StatusOK, res.Status)
	assert.NotNil(t, res.Offers)
	assert.Empty(t, res.Offers)
	assert.Equal(t, NoOffersMessage, res.Error)
	assert.Equal(t, ReasonEmpty, res.Reason)
}

func TestFailed_NeverCarriesOffers(t *testing.T) {
	res := Failed("Croma", time.Now(), ReasonNone, "")

	assert.Equal(t, StatusError, res.Status)
	assert.Empty(t, res.Offers)
	assert.Equal(t, "unavailable", res.Error)
	assert.Equal(t, ReasonUpstream, res.Reason)
}

func TestReasonFor(t *testing.T) {
	assert.Equal(t, ReasonNone, ReasonFor(nil))
	assert.Equal(t, ReasonBlocked, ReasonFor(fmt.Errorf("amazon: %w", ErrBlocked)))
	assert.Equal(t, ReasonTimeout, ReasonFor(fmt.Errorf("visit: %w", context.DeadlineExceeded)))
	assert.Equal(t, ReasonCanceled, ReasonFor(context.Canceled))
	assert.Equal(t, ReasonUpstream, ReasonFor(fmt.Errorf("status 503")))
}

func TestAggregatedResult_JSONShape(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	offer := Offer{Name: "IFB 9 kg", Price: 31990, ProductURL: "https://example.in/p/1", FetchedAt: at, Source: "Croma"}
	result := AggregatedResult{
		Sources: []SourceResult{
			Succeeded("Croma", at, []Offer{offer}),
			Failed("Amazon.in", at, ReasonTimeout, "timed out after 20s"),
		},
		Cheapest: &offer,
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	sources := decoded["sources"].([]any)
	require.Len(t, sources, 2)

	ok := sources[0].(map[string]any)
	assert.Equal(t, "ok", ok["status"])
	assert.NotContains(t, ok, "error")
	assert.NotContains(t, ok, "Reason")
	assert.Equal(t, "2026-10-18T09:30:00Z", ok["fetchedAt"])
	first := ok["offers"].([]any)[0].(map[string]any)
	assert.Equal(t, "https://example.in/p/1", first["productUrl"])

	failed := sources[1].(map[string]any)
	assert.Equal(t, "error", failed["status"])
	assert.Equal(t, []any{}, failed["offers"])
	assert.Equal(t, "timed out after 20s", failed["error"])

	cheapest := decoded["cheapest"].(map[string]any)
	assert.Equal(t, 31990.0, cheapest["price"])

	empty, err := json.Marshal(AggregatedResult{Sources: []SourceResult{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sources":[]}`, string(empty))
}
