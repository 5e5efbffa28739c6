package reliance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"offer-hunter/pkg/models"
	"offer-hunter/pkg/normalize"
	"offer-hunter/pkg/scrapers/base"
)

const (
	Source  = "Reliance Digital"
	BaseURL = "https://www.reliancedigital.in"
)

// collectCards runs in the page and returns the product grid as JSON.
const collectCards = `
	(function() {
		const cards = document.querySelectorAll(".product-card, li.grid div.sp");
		const out = [];
		for (const card of cards) {
			const link = card.querySelector("a[href]");
			const name = card.querySelector(".product-card-title, .sp__name");
			const price = card.querySelector(".price-container .price, .sc-bxivhb, span.TextWeb__Text-sc-1cyx778-0");
			out.push({
				name: name ? name.innerText : "",
				price: price ? price.innerText : "",
				url: link ? link.getAttribute("href") : ""
			});
		}
		return JSON.stringify(out);
	})()
`

// Scraper drives headless Chrome because the listing grid is rendered
// client-side.
type Scraper struct {
	SearchURL string
	Query     string
	DebugDir  string

	userAgent  string
	limiter    *rate.Limiter
	normalizer normalize.Normalizer
}

func NewScraper(opts base.Options) *Scraper {
	return &Scraper{
		SearchURL:  BaseURL + "/products",
		Query:      opts.Query,
		DebugDir:   opts.DebugDir,
		userAgent:  opts.Agent(),
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

	params := url.Values{}
	params.Set("q", s.Query)
	target := s.SearchURL + "?" + params.Encode()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(s.userAgent),
		chromedp.WindowSize(1920, 1080),
	)
	// The allocator hangs off the run context, so a timeout in the
	// aggregator kills the browser too.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var payload string

	log.Printf("[RELIANCE] Navigating to %s", target)
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.WaitVisible(`.product-card, li.grid div.sp`, chromedp.ByQuery),
		chromedp.Evaluate(collectCards, &payload),
	)
	if err != nil {
		return nil, s.failed(ctx, browserCtx, err)
	}

	return parseCards(payload)
}

// failed wraps a browser error. Once ctx is done the browser is already gone,
// so only failures with a live run context are dumped.
func (s *Scraper) failed(ctx, browserCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("chromedp failed: %w", ctx.Err())
	}
	s.dumpDebug(browserCtx)
	return fmt.Errorf("chromedp failed: %w", err)
}

func parseCards(payload string) ([]normalize.RawOffer, error) {
	var raws []normalize.RawOffer
	if err := json.Unmarshal([]byte(payload), &raws); err != nil {
		return nil, fmt.Errorf("failed to parse product grid: %w", err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("reliance: %w", models.ErrNoResults)
	}
	return raws, nil
}

// dumpDebug saves a screenshot and the page HTML when DebugDir is set.
func (s *Scraper) dumpDebug(browserCtx context.Context) {
	if s.DebugDir == "" {
		return
	}
	debugCtx, cancel := context.WithTimeout(browserCtx, 10*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(debugCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		log.Printf("[RELIANCE] Failed to capture screenshot: %v", err)
	} else if err := os.WriteFile(filepath.Join(s.DebugDir, "reliance_debug.png"), buf, 0o644); err != nil {
		log.Printf("[RELIANCE] Failed to write screenshot: %v", err)
	}

	var html string
	if err := chromedp.Run(debugCtx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html)); err != nil {
		log.Printf("[RELIANCE] Failed to capture HTML: %v", err)
	} else if err := os.WriteFile(filepath.Join(s.DebugDir, "reliance_debug.html"), []byte(html), 0o644); err != nil {
		log.Printf("[RELIANCE] Failed to write HTML: %v", err)
	} else {
		log.Printf("[RELIANCE] Debug dump saved to %s", s.DebugDir)
	}
}
