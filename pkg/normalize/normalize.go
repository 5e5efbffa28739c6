// Package normalize turns raw marketplace records into canonical offers.
// Records that cannot yield a positive price and a usable URL are dropped
// without failing the source they came from.
package normalize

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"offer-hunter/pkg/models"
)

// RawOffer is a listing as scraped, before any cleaning.
type RawOffer struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	URL   string `json:"url"`
}

var (
	ErrNoPrice       = errors.New("no numeric price")
	ErrPriceNotValid = errors.New("price must be positive")

	priceToken = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	stripTags  = bluemonday.StrictPolicy()
)

// ParsePrice extracts the first amount from strings like "₹41,990",
// "Rs. 1,23,456.00" or "INR 41990 M.R.P: ₹52,000".
func ParsePrice(raw string) (float64, error) {
	loc := priceToken.FindStringIndex(raw)
	if loc == nil {
		return 0, ErrNoPrice
	}
	if loc[0] > 0 && raw[loc[0]-1] == '-' {
		return 0, ErrPriceNotValid
	}
	token := raw[loc[0]:loc[1]]
	d, err := decimal.NewFromString(strings.ReplaceAll(token, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", token, err)
	}
	if !d.IsPositive() {
		return 0, ErrPriceNotValid
	}
	return d.Round(2).InexactFloat64(), nil
}

// CleanName strips markup and collapses whitespace.
func CleanName(raw string) string {
	name := html.UnescapeString(stripTags.Sanitize(raw))
	return strings.Join(strings.Fields(name), " ")
}

// Normalizer is bound to one marketplace.
type Normalizer struct {
	Source  string
	BaseURL string
	// Keywords must all appear in a listing name for it to qualify.
	Keywords []string
}

// ResolveURL makes href absolute against the marketplace base URL.
func (n Normalizer) ResolveURL(href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", errors.New("empty url")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if !ref.IsAbs() {
		base, err := url.Parse(n.BaseURL)
		if err != nil {
			return "", fmt.Errorf("bad base url: %w", err)
		}
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", ref.Scheme)
	}
	if ref.Host == "" {
		return "", errors.New("missing host")
	}
	ref.Fragment = ""
	return ref.String(), nil
}

// Qualifies reports whether name matches every keyword. Spaces are ignored
// so "9 kg" and "9kg" are the same.
func (n Normalizer) Qualifies(name string) bool {
	compact := squash(name)
	for _, kw := range n.Keywords {
		if k := squash(kw); k != "" && !strings.Contains(compact, k) {
			return false
		}
	}
	return true
}

func squash(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// Normalize converts raw records in order. The first record wins when two
// share a product URL.
func (n Normalizer) Normalize(raws []RawOffer, fetchedAt time.Time) []models.Offer {
	offers := make([]models.Offer, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		name := CleanName(raw.Name)
		if name == "" || !n.Qualifies(name) {
			continue
		}
		price, err := ParsePrice(raw.Price)
		if err != nil {
			continue
		}
		link, err := n.ResolveURL(raw.URL)
		if err != nil {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		offers = append(offers, models.Offer{
			Name:       name,
			Price:      price,
			ProductURL: link,
			FetchedAt:  fetchedAt,
			Source:     n.Source,
		})
	}
	return offers
}

// Result wraps the outcome of one adapter call. A non-nil err always wins
// over any records that were collected before it happened.
func (n Normalizer) Result(raws []RawOffer, fetchedAt time.Time, err error) models.SourceResult {
	if err != nil {
		return models.Failed(n.Source, fetchedAt, models.ReasonFor(err), err.Error())
	}
	return models.Succeeded(n.Source, fetchedAt, n.Normalize(raws, fetchedAt))
}
