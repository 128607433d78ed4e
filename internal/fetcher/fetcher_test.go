package fetcher

import (
	"io"
	"log/slog"
	"testing"

	"github.com/IliaW/futuretools-tracker/config"
	"github.com/IliaW/futuretools-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetcherConfig() *config.FetcherConfig {
	return &config.FetcherConfig{
		Mechanism:     "browser",
		BaseURL:       "https://www.futuretools.io",
		NewlyAddedURL: "https://www.futuretools.io/newly-added",
	}
}

func TestListingURL(t *testing.T) {
	cfg := testFetcherConfig()

	tests := []struct {
		name       string
		mode       model.ScrapeMode
		categories []string
		want       string
	}{
		{"recent only", model.RecentOnly, nil, "https://www.futuretools.io/newly-added"},
		{"recent only ignores categories", model.RecentOnly, []string{"Music"},
			"https://www.futuretools.io/newly-added"},
		{"category scoped", model.CategoryScoped, []string{"Music"},
			"https://www.futuretools.io?tags=music"},
		{"multiple categories", model.CategoryScoped, []string{"Music", "Chat"},
			"https://www.futuretools.io?tags=music&tags=chat"},
		{"category scoped without categories", model.CategoryScoped, nil,
			"https://www.futuretools.io"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := listingURL(cfg, tt.mode, tt.categories)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategorySlug(t *testing.T) {
	assert.Equal(t, "music", categorySlug("Music"))
	assert.Equal(t, "automation-agents", categorySlug("Automation & Agents"))
	assert.Equal(t, "generative-art", categorySlug("Generative Art"))
	assert.Equal(t, "speech-to-text", categorySlug("Speech-To-Text"))
}

func TestNewFetcherMechanisms(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		FetcherSettings: testFetcherConfig(),
		CrawlerSettings: &config.CrawlerConfig{RequestTimeout: 1, Retries: 0, LastCrawlIndexes: 1},
	}

	cfg.FetcherSettings.Mechanism = "browser"
	f, err := NewFetcher(cfg, log)
	require.NoError(t, err)
	assert.IsType(t, &BrowserFetcher{}, f)

	cfg.FetcherSettings.Mechanism = "static"
	f, err = NewFetcher(cfg, log)
	require.NoError(t, err)
	assert.IsType(t, &StaticFetcher{}, f)

	cfg.FetcherSettings.Mechanism = "selenium"
	_, err = NewFetcher(cfg, log)
	require.Error(t, err)
}
