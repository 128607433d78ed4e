package model

import (
	"fmt"
	"time"
)

type ScrapeMode int

const (
	RecentOnly ScrapeMode = iota
	CategoryScoped
	CacheOnly
)

func (m ScrapeMode) String() string {
	return [...]string{"recent-only", "category-scoped", "cache-only"}[m]
}

func ParseScrapeMode(s string) (ScrapeMode, error) {
	switch s {
	case "recent-only":
		return RecentOnly, nil
	case "category-scoped":
		return CategoryScoped, nil
	case "cache-only":
		return CacheOnly, nil
	default:
		return 0, fmt.Errorf("unknown scrape mode: %q", s)
	}
}

// Tool is a single catalog entry scraped from the listing site.
type Tool struct {
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Categories    []string  `json:"categories,omitempty"`
	Pricing       []string  `json:"pricing,omitempty"`
	URL           string    `json:"url"`
	AddedRecently bool      `json:"added_recently"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

// Metadata describes the last persisted record set.
type Metadata struct {
	LastUpdated time.Time `json:"last_updated"`
	Mode        string    `json:"mode"`
	RecordCount int       `json:"record_count"`
}

// Categories is the tag vocabulary used by the listing site.
var Categories = []string{
	"AI Detection", "Aggregators", "Automation & Agents", "Avatar", "Chat",
	"Copywriting", "Finance", "For Fun", "Gaming", "Generative Art",
	"Generative Code", "Generative Video", "Image Improvement", "Image Scanning",
	"Inspiration", "Marketing", "Motion Capture", "Music", "Podcasting",
	"Productivity", "Prompt Guides", "Research", "Self-Improvement",
	"Social Media", "Speech-To-Text", "Text-To-Speech", "Translation",
	"Video Editing", "Voice Modulation",
}

var PricingFilters = []string{"Free", "Freemium", "GitHub", "Google Colab", "Open Source", "Paid"}

var (
	categorySet = toSet(Categories)
	pricingSet  = toSet(PricingFilters)
)

func toSet(values []string) map[string]struct{} {
	s := make(map[string]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func KnownCategory(name string) bool {
	_, ok := categorySet[name]
	return ok
}

func KnownPricing(name string) bool {
	_, ok := pricingSet[name]
	return ok
}

// FilterQuery narrows a record set. Absent fields impose no restriction.
type FilterQuery struct {
	Text       string   `json:"text,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Pricing    []string `json:"pricing,omitempty"`
}

// Validate rejects category or pricing names outside the site vocabulary.
func (q FilterQuery) Validate() error {
	for _, c := range q.Categories {
		if !KnownCategory(c) {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidFilterQuery, c)
		}
	}
	for _, p := range q.Pricing {
		if !KnownPricing(p) {
			return fmt.Errorf("%w: unknown pricing filter %q", ErrInvalidFilterQuery, p)
		}
	}
	return nil
}
