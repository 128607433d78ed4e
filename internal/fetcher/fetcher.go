package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	netUrl "net/url"
	"strings"

	"github.com/IliaW/futuretools-tracker/config"
	"github.com/IliaW/futuretools-tracker/internal/model"
)

// SnapshotFetcher produces fully-rendered HTML snapshots of the listing page.
// The sequence is finite and not restartable mid-way; a failed fetch is
// re-run from scratch by the caller.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, mode model.ScrapeMode, categories []string) ([]string, error)
}

// NewFetcher picks the mechanism configured under fetcher.mechanism.
func NewFetcher(cfg *config.Config, log *slog.Logger) (SnapshotFetcher, error) {
	switch cfg.FetcherSettings.Mechanism {
	case "browser":
		return NewBrowserFetcher(cfg.FetcherSettings, log), nil
	case "static":
		return NewStaticFetcher(cfg.FetcherSettings, log), nil
	case "archive":
		return NewArchiveFetcher(cfg.FetcherSettings, cfg.CrawlerSettings, log), nil
	default:
		return nil, fmt.Errorf("unsupported fetch mechanism: %q", cfg.FetcherSettings.Mechanism)
	}
}

// listingURL resolves the page to load for a scrape mode. CategoryScoped
// appends one tags query parameter per requested category.
func listingURL(cfg *config.FetcherConfig, mode model.ScrapeMode, categories []string) (string, error) {
	if mode == model.RecentOnly {
		return cfg.NewlyAddedURL, nil
	}
	if mode != model.CategoryScoped || len(categories) == 0 {
		return cfg.BaseURL, nil
	}

	u, err := netUrl.Parse(cfg.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for _, c := range categories {
		q.Add("tags", categorySlug(c))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// categorySlug converts a display name to the site's tag slug,
// e.g. "Automation & Agents" -> "automation-agents".
func categorySlug(category string) string {
	s := strings.ToLower(category)
	s = strings.ReplaceAll(s, " & ", " ")
	s = strings.ReplaceAll(s, " ", "-")

	return s
}
