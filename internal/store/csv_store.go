package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/IliaW/futuretools-tracker/config"
	"github.com/IliaW/futuretools-tracker/internal/model"
	jsoniter "github.com/json-iterator/go"
)

const multiValueDelimiter = ", "

var header = []string{"name", "description", "categories", "pricing", "url", "added_recently", "scraped_at"}

type RecordStore interface {
	Save([]model.Tool, model.ScrapeMode) error
	Load() ([]model.Tool, *model.Metadata, error)
	Clear() error
}

// CsvStore persists the record set as a flat CSV file with a JSON metadata
// sidecar. Writes go through a temp file and rename so a reader never sees a
// half-written cache.
type CsvStore struct {
	cfg *config.StoreConfig
	log *slog.Logger
}

func NewCsvStore(cfg *config.StoreConfig, log *slog.Logger) *CsvStore {
	return &CsvStore{cfg: cfg, log: log}
}

// Save overwrites the persisted record set. In RecentOnly mode the new
// records are merged into the existing cached set first, de-duplicated by the
// configured key with the fresh record winning.
func (s *CsvStore) Save(records []model.Tool, mode model.ScrapeMode) error {
	if mode == model.RecentOnly {
		records = s.mergeWithCached(records)
	}
	if err := s.writeRecords(records); err != nil {
		return err
	}
	meta := &model.Metadata{
		LastUpdated: time.Now(),
		Mode:        mode.String(),
		RecordCount: len(records),
	}
	if err := s.writeMetadata(meta); err != nil {
		return err
	}
	s.log.Info("record set saved.", slog.Int("count", len(records)), slog.String("mode", mode.String()))

	return nil
}

// Load returns the persisted record set, or an empty set with nil metadata
// when no cache file exists.
func (s *CsvStore) Load() ([]model.Tool, *model.Metadata, error) {
	f, err := os.Open(s.cfg.CacheFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	defer f.Close()

	records, err := readRecords(f)
	if err != nil {
		return nil, nil, err
	}
	meta, err := s.readMetadata()
	if err != nil {
		return nil, nil, err
	}
	s.log.Debug("record set loaded from cache.", slog.Int("count", len(records)))

	return records, meta, nil
}

func (s *CsvStore) Clear() error {
	for _, file := range []string{s.cfg.CacheFile, s.cfg.MetadataFile} {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	s.log.Info("cache cleared.")

	return nil
}

// ExportCSV serializes a record subset in the cache file format.
func ExportCSV(w io.Writer, records []model.Tool) error {
	return writeCSV(w, records)
}

// ExportFilename returns a timestamped name for a user-facing export.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("futuretools_export_%s.csv", now.Format("20060102_150405"))
}

func (s *CsvStore) mergeWithCached(fresh []model.Tool) []model.Tool {
	cached, _, err := s.Load()
	if err != nil {
		// A corrupt cache is treated as no cache; the merge starts empty.
		s.log.Warn("failed to load cache for merge. Using fresh records only.",
			slog.String("err", err.Error()))
		return fresh
	}
	if len(cached) == 0 {
		return fresh
	}

	key := s.dedupKey
	index := make(map[string]int, len(cached))
	merged := make([]model.Tool, len(cached))
	copy(merged, cached)
	for i, t := range merged {
		index[key(t)] = i
	}
	for _, t := range fresh {
		if i, ok := index[key(t)]; ok {
			merged[i] = t
			continue
		}
		index[key(t)] = len(merged)
		merged = append(merged, t)
	}
	s.log.Debug("merged recent records into cached set.", slog.Int("cached", len(cached)),
		slog.Int("fresh", len(fresh)), slog.Int("merged", len(merged)))

	return merged
}

func (s *CsvStore) dedupKey(t model.Tool) string {
	if s.cfg.DedupKey == "name" {
		return t.Name
	}
	return t.URL
}

func (s *CsvStore) writeRecords(records []model.Tool) error {
	tmp := s.cfg.CacheFile + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err = writeCSV(f, records); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err = f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, s.cfg.CacheFile)
}

func (s *CsvStore) writeMetadata(meta *model.Metadata) error {
	body, err := jsoniter.Marshal(meta)
	if err != nil {
		return err
	}
	tmp := s.cfg.MetadataFile + ".tmp"
	if err = os.WriteFile(tmp, body, 0644); err != nil {
		return err
	}

	return os.Rename(tmp, s.cfg.MetadataFile)
}

func (s *CsvStore) readMetadata() (*model.Metadata, error) {
	body, err := os.ReadFile(s.cfg.MetadataFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var meta model.Metadata
	if err = jsoniter.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata: %s", model.ErrCacheCorrupt, err.Error())
	}

	return &meta, nil
}

func writeCSV(w io.Writer, records []model.Tool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range records {
		row := []string{
			t.Name,
			t.Description,
			strings.Join(t.Categories, multiValueDelimiter),
			strings.Join(t.Pricing, multiValueDelimiter),
			t.URL,
			strconv.FormatBool(t.AddedRecently),
			t.ScrapedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()

	return cw.Error()
}

func readRecords(r io.Reader) ([]model.Tool, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrCacheCorrupt, err.Error())
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows[0]) != len(header) {
		return nil, fmt.Errorf("%w: expected %d columns, got %d", model.ErrCacheCorrupt,
			len(header), len(rows[0]))
	}

	records := make([]model.Tool, 0, len(rows)-1)
	for _, row := range rows[1:] {
		added, err := strconv.ParseBool(row[5])
		if err != nil {
			return nil, fmt.Errorf("%w: bad added_recently value %q", model.ErrCacheCorrupt, row[5])
		}
		scrapedAt, _ := time.Parse(time.RFC3339, row[6])
		records = append(records, model.Tool{
			Name:          row[0],
			Description:   row[1],
			Categories:    splitMultiValue(row[2]),
			Pricing:       splitMultiValue(row[3]),
			URL:           row[4],
			AddedRecently: added,
			ScrapedAt:     scrapedAt,
		})
	}

	return records, nil
}

func splitMultiValue(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, multiValueDelimiter)
}
