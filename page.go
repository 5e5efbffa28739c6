package main

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"offer-hunter/pkg/api"
	"offer-hunter/pkg/models"
)

//go:embed templates/index.html
var templateFS embed.FS

var ist = time.FixedZone("IST", 5*60*60+30*60)

var pageTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"inr":  formatINR,
	"when": formatIST,
}).ParseFS(templateFS, "templates/index.html"))

type pageIssue struct {
	Source  string
	Message string
}

type pageView struct {
	Query       string
	LastChecked string
	Cheapest    *models.Offer
	Sources     []models.SourceResult
	Issues      []pageIssue
}

// buildPage splits sources into those with offers to list and those to report
// as issues. An ok source without offers counts as an issue here.
func buildPage(query string, res models.AggregatedResult) pageView {
	view := pageView{Query: query, Cheapest: res.Cheapest, LastChecked: "Awaiting data"}

	var latest time.Time
	for _, src := range res.Sources {
		if src.FetchedAt.After(latest) {
			latest = src.FetchedAt
		}
		if src.Status == models.StatusOK && len(src.Offers) > 0 {
			view.Sources = append(view.Sources, src)
			continue
		}
		msg := src.Error
		if msg == "" {
			msg = "Unavailable"
		}
		view.Issues = append(view.Issues, pageIssue{Source: src.Source, Message: msg})
	}
	if !latest.IsZero() {
		view.LastChecked = formatIST(latest)
	}
	return view
}

func (s *server) pageHandler(w http.ResponseWriter, r *http.Request) {
	view := buildPage(s.query, s.offers.Current(r.Context()))

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		api.WriteInternalServerError(w, fmt.Errorf("failed to render page: %w", err), r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// formatINR renders whole rupees with Indian digit grouping: ₹1,23,456.
func formatINR(price float64) string {
	digits := strconv.FormatInt(int64(math.Round(price)), 10)
	if len(digits) <= 3 {
		return "₹" + digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	groups = append([]string{head}, groups...)
	return "₹" + strings.Join(groups, ",") + "," + tail
}

func formatIST(t time.Time) string {
	return t.In(ist).Format("2 Jan 2006, 3:04:05 pm IST")
}
