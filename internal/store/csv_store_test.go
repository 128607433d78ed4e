package store

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IliaW/futuretools-tracker/config"
	"github.com/IliaW/futuretools-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *CsvStore {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.StoreConfig{
		CacheFile:    filepath.Join(dir, "futuretools_cache.csv"),
		MetadataFile: filepath.Join(dir, "cache_metadata.json"),
		CacheTTL:     24 * time.Hour,
		DedupKey:     "url",
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewCsvStore(cfg, log)
}

func sampleRecords() []model.Tool {
	scrapedAt := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	return []model.Tool{
		{Name: "ChatStorm", Description: "An AI chat assistant for teams.",
			Categories: []string{"Chat", "Productivity"}, Pricing: []string{"Freemium"},
			URL: "https://www.futuretools.io/tools/chatstorm", ScrapedAt: scrapedAt},
		{Name: "PixelForge", Description: "Generate art, with commas, from text.",
			Categories: []string{"Generative Art"}, Pricing: []string{"Paid"},
			URL: "https://www.futuretools.io/tools/pixelforge", ScrapedAt: scrapedAt},
		{Name: "TuneSmith", Description: "",
			Categories: nil, Pricing: nil,
			URL: "https://www.futuretools.io/tools/tunesmith", AddedRecently: true,
			ScrapedAt: scrapedAt},
	}
}

func TestLoadWithoutCache(t *testing.T) {
	s := setup(t)

	records, meta, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Nil(t, meta)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := setup(t)
	records := sampleRecords()

	require.NoError(t, s.Save(records, model.CategoryScoped))

	loaded, meta, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, records, loaded)
	require.NotNil(t, meta)
	assert.Equal(t, "category-scoped", meta.Mode)
	assert.Equal(t, len(records), meta.RecordCount)
	assert.WithinDuration(t, time.Now(), meta.LastUpdated, time.Minute)
}

func TestSaveOverwritesPreviousSet(t *testing.T) {
	s := setup(t)
	require.NoError(t, s.Save(sampleRecords(), model.CategoryScoped))
	require.NoError(t, s.Save(sampleRecords()[:1], model.CategoryScoped))

	loaded, meta, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 1, meta.RecordCount)
}

func TestRecentOnlyMergesAndDedupsByURL(t *testing.T) {
	s := setup(t)
	require.NoError(t, s.Save(sampleRecords(), model.CategoryScoped))

	fresh := []model.Tool{
		{Name: "ChatStorm v2", Description: "Rebranded chat assistant.",
			Categories: []string{"Chat"}, Pricing: []string{"Paid"},
			URL:       "https://www.futuretools.io/tools/chatstorm",
			ScrapedAt: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC), AddedRecently: true},
		{Name: "VoiceCraft", URL: "https://www.futuretools.io/tools/voicecraft",
			Categories: []string{"Text-To-Speech"},
			ScrapedAt:  time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC), AddedRecently: true},
	}
	require.NoError(t, s.Save(fresh, model.RecentOnly))

	loaded, meta, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 4)
	assert.Equal(t, 4, meta.RecordCount)

	byURL := make(map[string]model.Tool)
	for _, tool := range loaded {
		_, dup := byURL[tool.URL]
		require.False(t, dup, "duplicate url %s after merge", tool.URL)
		byURL[tool.URL] = tool
	}
	// The fresh record wins for the shared url.
	assert.Equal(t, "ChatStorm v2", byURL["https://www.futuretools.io/tools/chatstorm"].Name)
	// Cached order is preserved, new records appended.
	assert.Equal(t, "https://www.futuretools.io/tools/chatstorm", loaded[0].URL)
	assert.Equal(t, "VoiceCraft", loaded[3].Name)
}

func TestRecentOnlyWithEmptyCache(t *testing.T) {
	s := setup(t)
	fresh := sampleRecords()[:1]
	require.NoError(t, s.Save(fresh, model.RecentOnly))

	loaded, _, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, fresh, loaded)
}

func TestClearThenLoad(t *testing.T) {
	s := setup(t)
	require.NoError(t, s.Save(sampleRecords(), model.CategoryScoped))
	require.NoError(t, s.Clear())

	records, meta, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Nil(t, meta)

	// Clearing an already empty cache is not an error.
	require.NoError(t, s.Clear())
}

func TestCorruptCacheFile(t *testing.T) {
	s := setup(t)
	require.NoError(t, os.WriteFile(s.cfg.CacheFile, []byte("name,url\n\"broken"), 0644))

	_, _, err := s.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCacheCorrupt))
}

func TestWrongColumnCount(t *testing.T) {
	s := setup(t)
	require.NoError(t, os.WriteFile(s.cfg.CacheFile, []byte("name,url\na,b\n"), 0644))

	_, _, err := s.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCacheCorrupt))
}

func TestCorruptMetadataFile(t *testing.T) {
	s := setup(t)
	require.NoError(t, s.Save(sampleRecords(), model.CategoryScoped))
	require.NoError(t, os.WriteFile(s.cfg.MetadataFile, []byte("{not json"), 0644))

	_, _, err := s.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCacheCorrupt))
}

func TestNoTempFileLeftBehind(t *testing.T) {
	s := setup(t)
	require.NoError(t, s.Save(sampleRecords(), model.CategoryScoped))

	entries, err := os.ReadDir(filepath.Dir(s.cfg.CacheFile))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file %s left behind", e.Name())
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, sampleRecords()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "name,description,categories,pricing,url,added_recently,scraped_at", lines[0])
	assert.Contains(t, lines[1], "Chat, Productivity")
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2026, 8, 25, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "futuretools_export_20260825_090507.csv", ExportFilename(now))
}
