package amazon

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"offer-hunter/pkg/models"
	"offer-hunter/pkg/normalize"
	"offer-hunter/pkg/scrapers/base"
)

const (
	Source  = "Amazon.in"
	BaseURL = "https://www.amazon.in"
)

type Scraper struct {
	Collector *colly.Collector
	SearchURL string
	Query     string

	limiter    *rate.Limiter
	normalizer normalize.Normalizer
}

func NewScraper(opts base.Options) *Scraper {
	c := colly.NewCollector(
		colly.AllowedDomains("www.amazon.in", "amazon.in"),
		colly.UserAgent(opts.Agent()),
		colly.AllowURLRevisit(),
	)
	return &Scraper{
		Collector:  c,
		SearchURL:  BaseURL + "/s",
		Query:      opts.Query,
		limiter:    opts.Limiter(),
		normalizer: opts.Normalizer(Source, BaseURL),
	}
}

func (s *Scraper) Name() string { return Source }

func (s *Scraper) FetchOffers(ctx context.Context) models.SourceResult {
	fetchedAt := time.Now().UTC()
	raws, err := s.scrape(ctx)
	return s.normalizer.Result(raws, fetchedAt, err)
}

func (s *Scraper) searchURL() string {
	params := url.Values{}
	params.Set("k", s.Query)
	return s.SearchURL + "?" + params.Encode()
}

func (s *Scraper) scrape(ctx context.Context) ([]normalize.RawOffer, error) {
	if err := base.Wait(ctx, s.limiter); err != nil {
		return nil, err
	}

	// A fresh clone per run keeps callbacks from piling up on the shared
	// collector and ties its requests to this run's context.
	c := s.Collector.Clone()
	c.Context = ctx

	var (
		raws    []normalize.RawOffer
		cards   int
		blocked bool
	)

	c.OnHTML(`div[data-component-type="s-search-result"]`, func(e *colly.HTMLElement) {
		cards++
		if e.Attr("data-asin") == "" {
			return
		}
		// Sponsored tiles repeat organic results under ad URLs.
		if e.ChildText(".puis-sponsored-label-text") != "" {
			return
		}
		href := e.ChildAttr("h2 a", "href")
		if href == "" {
			href = e.ChildAttr("a.a-link-normal.s-no-outline", "href")
		}
		// AbsoluteURL("") resolves to the search page itself.
		if href == "" {
			return
		}
		raws = append(raws, normalize.RawOffer{
			Name:  e.ChildText("h2"),
			Price: e.ChildText(".a-price:not(.a-text-price) .a-offscreen"),
			URL:   e.Request.AbsoluteURL(href),
		})
	})

	c.OnHTML(`form[action*="validateCaptcha"]`, func(e *colly.HTMLElement) {
		blocked = true
	})

	target := s.searchURL()
	log.Printf("[AMAZON] Navigating to %s", target)
	if err := c.Visit(target); err != nil {
		return nil, fmt.Errorf("visit search page: %w", err)
	}

	if blocked {
		return nil, fmt.Errorf("amazon: %w", models.ErrBlocked)
	}
	if cards == 0 {
		return nil, fmt.Errorf("amazon: %w", models.ErrNoResults)
	}
	return raws, nil
}
