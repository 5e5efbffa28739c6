package croma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"offer-hunter/pkg/models"
	"offer-hunter/pkg/normalize"
	"offer-hunter/pkg/scrapers/base"
)

const (
	Source  = "Croma"
	BaseURL = "https://www.croma.com"
	APIURL  = "https://api.croma.com/searchservices/v1/search"

	maxBodySize = 4 << 20
)

type Scraper struct {
	Client *http.Client
	APIURL string
	Query  string

	userAgent  string
	limiter    *rate.Limiter
	normalizer normalize.Normalizer
}

func NewScraper(opts base.Options) *Scraper {
	return &Scraper{
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		APIURL:     APIURL,
		Query:      opts.Query,
		userAgent:  opts.Agent(),
		limiter:    opts.Limiter(),
		normalizer: opts.Normalizer(Source, BaseURL),
	}
}

type searchResponse struct {
	Products []product `json:"products"`
}

type product struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Price struct {
		// Can be string or number
		Value          json.RawMessage `json:"value"`
		FormattedValue string          `json:"formattedValue"`
	} `json:"price"`
}

func (s *Scraper) Name() string { return Source }

func (s *Scraper) FetchOffers(ctx context.Context) models.SourceResult {
	fetchedAt := time.Now().UTC()
	raws, err := s.search(ctx)
	return s.normalizer.Result(raws, fetchedAt, err)
}

func (s *Scraper) search(ctx context.Context) ([]normalize.RawOffer, error) {
	if err := base.Wait(ctx, s.limiter); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", s.Query)
	params.Set("currentPage", "0")
	params.Set("pageSize", "24")
	params.Set("fields", "FULL")
	target := fmt.Sprintf("%s?%s", s.APIURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	log.Printf("[CROMA] Querying %s", target)
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch search results: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("croma: status %d: %w", resp.StatusCode, models.ErrBlocked)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("croma: API returned non-200 status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	raws := make([]normalize.RawOffer, 0, len(sr.Products))
	for _, p := range sr.Products {
		raws = append(raws, normalize.RawOffer{
			Name:  p.Name,
			Price: priceText(p),
			URL:   p.URL,
		})
	}
	return raws, nil
}

func priceText(p product) string {
	if p.Price.FormattedValue != "" {
		return p.Price.FormattedValue
	}
	var text string
	if len(p.Price.Value) > 0 {
		// Try unquote first if it's a string
		if err := json.Unmarshal(p.Price.Value, &text); err != nil {
			text = string(p.Price.Value)
		}
	}
	return strings.Trim(text, `"'`)
}
