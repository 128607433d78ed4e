package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/IliaW/futuretools-tracker/config"
	"github.com/IliaW/futuretools-tracker/internal/aws_s3"
	"github.com/IliaW/futuretools-tracker/internal/extractor"
	"github.com/IliaW/futuretools-tracker/internal/fetcher"
	"github.com/IliaW/futuretools-tracker/internal/filter"
	"github.com/IliaW/futuretools-tracker/internal/model"
	"github.com/IliaW/futuretools-tracker/internal/store"
)

type State int

const (
	Idle State = iota
	Fetching
	Extracting
	Caching
	Ready
	Failed
)

func (s State) String() string {
	return [...]string{"idle", "fetching", "extracting", "caching", "ready", "failed"}[s]
}

// Stats summarizes the current record set for the UI header.
type Stats struct {
	Total      int `json:"total"`
	Categories int `json:"categories"`
	Free       int `json:"free"`
	Paid       int `json:"paid"`
}

// Service owns the live record set for a session and sequences
// fetch -> extract -> cache. One scrape runs to completion before the next
// is accepted; errors are surfaced to the caller, never retried.
type Service struct {
	fetcher   fetcher.SnapshotFetcher
	extractor *extractor.Extractor
	store     store.RecordStore
	s3        aws_s3.BucketClient // optional snapshot archive, may be nil
	cfg       *config.Config
	log       *slog.Logger

	state   State
	records []model.Tool
	meta    *model.Metadata
}

func NewService(f fetcher.SnapshotFetcher, e *extractor.Extractor, s store.RecordStore,
	s3 aws_s3.BucketClient, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		fetcher:   f,
		extractor: e,
		store:     s,
		s3:        s3,
		cfg:       cfg,
		log:       log,
		state:     Idle,
	}
}

func (s *Service) State() State {
	return s.state
}

// Scrape runs one full scrape in the given mode and returns the resulting
// record set. CacheOnly skips fetching entirely and serves the persisted set.
func (s *Service) Scrape(ctx context.Context, mode model.ScrapeMode,
	categories []string) ([]model.Tool, error) {
	if mode == model.CacheOnly {
		records, _, err := s.LoadCache()
		return records, err
	}
	if err := validateScrapeArgs(mode, categories); err != nil {
		return nil, err
	}

	s.setState(Fetching)
	snapshots, err := s.fetcher.Fetch(ctx, mode, categories)
	if err != nil {
		return nil, s.fail(err)
	}

	s.setState(Extracting)
	records := make([]model.Tool, 0, 64)
	for i, snapshot := range snapshots {
		extracted, err := s.extractor.Extract(snapshot, mode == model.RecentOnly)
		if err != nil {
			if errors.Is(err, model.ErrExtractionSchemaChanged) {
				s.archiveSnapshot(mode, i, snapshot)
			}
			return nil, s.fail(err)
		}
		records = append(records, extracted...)
	}
	if mode == model.CategoryScoped {
		// The site filters its catalog client-side, so the loaded page can
		// still contain cards outside the requested tags.
		records = keepCategories(records, categories)
	}

	s.setState(Caching)
	if err = s.store.Save(records, mode); err != nil {
		return nil, s.fail(err)
	}
	// Reload so the session set matches the persisted one (RecentOnly save
	// merges into the previously cached records).
	s.records, s.meta, err = s.store.Load()
	if err != nil {
		return nil, s.fail(err)
	}
	s.setState(Ready)
	s.log.Info("scrape finished.", slog.String("mode", mode.String()),
		slog.Int("records", len(s.records)))

	return s.records, nil
}

// LoadCache serves the last persisted record set without scraping.
func (s *Service) LoadCache() ([]model.Tool, *model.Metadata, error) {
	records, meta, err := s.store.Load()
	if err != nil {
		return nil, nil, s.fail(err)
	}
	s.records = records
	s.meta = meta
	s.setState(Ready)

	return s.records, s.meta, nil
}

func (s *Service) ClearCache() error {
	if err := s.store.Clear(); err != nil {
		return s.fail(err)
	}
	s.records = nil
	s.meta = nil
	s.setState(Idle)

	return nil
}

// Filter narrows the session record set. The set itself is left untouched.
func (s *Service) Filter(q model.FilterQuery) ([]model.Tool, error) {
	return filter.Apply(s.records, q)
}

// Export serializes a filtered subset in the cache file format.
func (s *Service) Export(w io.Writer, subset []model.Tool) error {
	return store.ExportCSV(w, subset)
}

func (s *Service) Metadata() *model.Metadata {
	return s.meta
}

// Fresh reports whether the cached data is recent enough to display without
// rescraping.
func (s *Service) Fresh() bool {
	if s.meta == nil {
		return false
	}
	return time.Since(s.meta.LastUpdated) < s.cfg.StoreSettings.CacheTTL
}

func (s *Service) Stats() Stats {
	stats := Stats{Total: len(s.records)}
	categories := make(map[string]struct{})
	for _, t := range s.records {
		for _, c := range t.Categories {
			categories[c] = struct{}{}
		}
		for _, p := range t.Pricing {
			if p == "Free" {
				stats.Free++
			}
			if p == "Paid" {
				stats.Paid++
			}
		}
	}
	stats.Categories = len(categories)

	return stats
}

func (s *Service) setState(state State) {
	s.log.Debug("state transition.", slog.String("from", s.state.String()),
		slog.String("to", state.String()))
	s.state = state
}

func (s *Service) fail(err error) error {
	s.setState(Failed)
	s.log.Error("scrape failed.", slog.String("err", err.Error()))

	return err
}

func (s *Service) archiveSnapshot(mode model.ScrapeMode, page int, html string) {
	if s.s3 == nil {
		return
	}
	link := s.s3.WriteSnapshot(mode.String(), page, html)
	if link != "" {
		s.log.Info("snapshot archived for inspection.", slog.String("link", link))
	}
}

func validateScrapeArgs(mode model.ScrapeMode, categories []string) error {
	if mode != model.CategoryScoped {
		return nil
	}
	if len(categories) == 0 {
		return fmt.Errorf("%w: category-scoped scrape requires at least one category",
			model.ErrInvalidFilterQuery)
	}
	for _, c := range categories {
		if !model.KnownCategory(c) {
			return fmt.Errorf("%w: unknown category %q", model.ErrInvalidFilterQuery, c)
		}
	}
	return nil
}

func keepCategories(records []model.Tool, categories []string) []model.Tool {
	kept := make([]model.Tool, 0, len(records))
	for _, t := range records {
		if intersects(t.Categories, categories) {
			kept = append(kept, t)
		}
	}
	return kept
}

func intersects(values, wanted []string) bool {
	for _, v := range values {
		for _, w := range wanted {
			if v == w {
				return true
			}
		}
	}
	return false
}
