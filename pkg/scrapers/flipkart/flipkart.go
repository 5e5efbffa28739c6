package flipkart

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"offer-hunter/pkg/models"
	"offer-hunter/pkg/normalize"
	"offer-hunter/pkg/scrapers/base"
)

const (
	Source  = "Flipkart"
	BaseURL = "https://www.flipkart.com"
)

// Flipkart rotates its generated class names, so the known ones are tried
// first and a structural fallback covers the rest.
var (
	nameSelectors  = []string{"div.KzDlHZ", "div._4rR01T", "a.wjcEIp"}
	priceSelectors = []string{"div.Nx9bqj", "div._30jeq3"}
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
		colly.AllowedDomains("www.flipkart.com", "flipkart.com"),
		colly.UserAgent(opts.Agent()),
		colly.AllowURLRevisit(),
	)
	return &Scraper{
		Collector:  c,
		SearchURL:  BaseURL + "/search",
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

func (s *Scraper) scrape(ctx context.Context) ([]normalize.RawOffer, error) {
	if err := base.Wait(ctx, s.limiter); err != nil {
		return nil, err
	}

	c := s.Collector.Clone()
	c.Context = ctx

	var (
		raws  []normalize.RawOffer
		cards int
	)

	c.OnHTML("div[data-id]", func(e *colly.HTMLElement) {
		cards++
		link := e.DOM.Find(`a[href*="/p/"]`).First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		raws = append(raws, normalize.RawOffer{
			Name:  cardName(e, link),
			Price: cardPrice(e),
			URL:   e.Request.AbsoluteURL(href),
		})
	})

	params := url.Values{}
	params.Set("q", s.Query)
	target := s.SearchURL + "?" + params.Encode()

	log.Printf("[FLIPKART] Navigating to %s", target)
	if err := c.Visit(target); err != nil {
		return nil, fmt.Errorf("visit search page: %w", err)
	}
	if cards == 0 {
		return nil, fmt.Errorf("flipkart: %w", models.ErrNoResults)
	}
	return raws, nil
}

func cardName(e *colly.HTMLElement, link *goquery.Selection) string {
	for _, sel := range nameSelectors {
		if name := strings.TrimSpace(e.ChildText(sel)); name != "" {
			return name
		}
	}
	if title, ok := link.Attr("title"); ok {
		return title
	}
	return e.DOM.Find(`a[title]`).First().AttrOr("title", "")
}

func cardPrice(e *colly.HTMLElement) string {
	for _, sel := range priceSelectors {
		if price := e.DOM.Find(sel).First().Text(); price != "" {
			return price
		}
	}
	// The selling price is the first leaf element starting with a rupee sign;
	// the struck-through MRP comes after it.
	var price string
	e.DOM.Find("div, span").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if el.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(el.Text())
		if strings.HasPrefix(text, "₹") {
			price = text
			return false
		}
		return true
	})
	return price
}
