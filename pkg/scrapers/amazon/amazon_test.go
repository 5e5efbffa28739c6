package amazon

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offer-hunter/pkg/models"
	"offer-hunter/pkg/scrapers/base"
)

const resultsPage = `
<!DOCTYPE html>
<html>
<body>
  <div data-component-type="s-search-result" data-asin="B0C1">
    <h2><a href="/IFB-Senator-Front-Load/dp/B0C1?ref=sr_1_1"><span>IFB 9 kg 5 Star Front Load Senator WSS</span></a></h2>
    <span class="a-price"><span class="a-offscreen">₹36,490</span></span>
    <span class="a-price a-text-price"><span class="a-offscreen">₹52,990</span></span>
  </div>
  <div data-component-type="s-search-result" data-asin="B0C2">
    <span class="puis-sponsored-label-text">Sponsored</span>
    <h2><a href="/sspa/click?x=1"><span>IFB 9 kg Executive Plus</span></a></h2>
    <span class="a-price"><span class="a-offscreen">₹30,000</span></span>
  </div>
  <div data-component-type="s-search-result" data-asin="B0C3">
    <h2><a href="/IFB-Executive/dp/B0C3"><span>IFB 9 kg Executive Plus VX</span></a></h2>
    <span class="a-color-price">Currently unavailable.</span>
  </div>
  <div data-component-type="s-search-result" data-asin="B0C4">
    <h2><a href="/LG-Front-Load/dp/B0C4"><span>LG 9 kg Front Load</span></a></h2>
    <span class="a-price"><span class="a-offscreen">₹29,990</span></span>
  </div>
  <div data-component-type="s-search-result" data-asin="B0C5">
    <h2><a href="/IFB-Senator-Smart/dp/B0C5"><span>IFB 9 Kg Senator Smart Plus</span></a></h2>
    <span class="a-price"><span class="a-offscreen">₹34,990</span></span>
  </div>
</body>
</html>`

func newTestScraper(t *testing.T, handler http.HandlerFunc) *Scraper {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	scraper := NewScraper(base.Options{Query: "IFB 9 kg washing machine", Keywords: []string{"ifb", "9kg"}})
	scraper.SearchURL = ts.URL + "/s"
	scraper.Collector.AllowedDomains = nil
	return scraper
}

func TestScraper_FetchOffers(t *testing.T) {
	var query string
	scraper := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("k")
		fmt.Fprintln(w, resultsPage)
	})

	res := scraper.FetchOffers(context.Background())

	assert.Equal(t, "IFB 9 kg washing machine", query)
	require.Equal(t, models.StatusOK, res.Status, res.Error)
	require.Len(t, res.Offers, 2)

	assert.Equal(t, "IFB 9 kg 5 Star Front Load Senator WSS", res.Offers[0].Name)
	assert.Equal(t, 36490.0, res.Offers[0].Price)
	assert.Contains(t, res.Offers[0].ProductURL, "/IFB-Senator-Front-Load/dp/B0C1")
	assert.Equal(t, Source, res.Offers[0].Source)

	assert.Equal(t, 34990.0, res.Offers[1].Price)
}

func TestScraper_Captcha(t *testing.T) {
	scraper := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body><form action="/errors/validateCaptcha"></form></body></html>`)
	})

	res := scraper.FetchOffers(context.Background())

	assert.Equal(t, models.StatusError, res.Status)
	assert.Equal(t, models.ReasonBlocked, res.Reason)
}

func TestScraper_UpstreamError(t *testing.T) {
	scraper := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	res := scraper.FetchOffers(context.Background())

	assert.Equal(t, models.StatusError, res.Status)
	assert.Empty(t, res.Offers)
	assert.NotEmpty(t, res.Error)
}

func TestScraper_NoCards(t *testing.T) {
	scraper := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body><p>Something went wrong</p></body></html>`)
	})

	res := scraper.FetchOffers(context.Background())

	assert.Equal(t, models.StatusError, res.Status)
	assert.Contains(t, res.Error, "no listings")
}

func TestScraper_RepeatedRuns(t *testing.T) {
	scraper := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, resultsPage)
	})

	first := scraper.FetchOffers(context.Background())
	second := scraper.FetchOffers(context.Background())

	assert.Len(t, first.Offers, 2)
	assert.Len(t, second.Offers, 2)
}

const linklessPage = `
<!DOCTYPE html>
<html>
<body>
  <div data-component-type="s-search-result" data-asin="B0D1">
    <h2><span>IFB 9 kg Front Load No Link</span></h2>
    <span class="a-price"><span class="a-offscreen">₹21,990</span></span>
  </div>
  <div data-component-type="s-search-result" data-asin="B0D2">
    <h2><a href="/IFB-Senator/dp/B0D2"><span>IFB 9 kg Senator Plus</span></a></h2>
    <span class="a-price"><span class="a-offscreen">₹33,990</span></span>
  </div>
</body>
</html>`

func TestScraper_SkipsCardsWithoutLink(t *testing.T) {
	scraper := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, linklessPage)
	})

	res := scraper.FetchOffers(context.Background())

	require.Equal(t, models.StatusOK, res.Status, res.Error)
	require.Len(t, res.Offers, 1)
	assert.Equal(t, "IFB 9 kg Senator Plus", res.Offers[0].Name)
	assert.Contains(t, res.Offers[0].ProductURL, "/dp/B0D2")
	assert.NotContains(t, res.Offers[0].ProductURL, "/s?")
}
