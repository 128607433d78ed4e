package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/IliaW/futuretools-tracker/config"
	"github.com/IliaW/futuretools-tracker/internal/model"
	jsoniter "github.com/json-iterator/go"
	"github.com/karust/gogetcrawl/common"
	"github.com/karust/gogetcrawl/commoncrawl"
	"github.com/patrickmn/go-cache"
)

const indexListUrl = "https://index.commoncrawl.org/collinfo.json"

type Index struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Timegate string `json:"timegate"`
	CdxAPI   string `json:"cdx-api"`
}

// ArchiveFetcher pulls the most recent CommonCrawl capture of the listing
// page. The site renders its catalog client-side, so archived captures are a
// degraded last resort, not a substitute for the browser fetcher.
type ArchiveFetcher struct {
	crawler    *commoncrawl.CommonCrawl
	cfg        *config.FetcherConfig
	crawlCfg   *config.CrawlerConfig
	log        *slog.Logger
	localCache *cache.Cache
}

func NewArchiveFetcher(cfg *config.FetcherConfig, crawlCfg *config.CrawlerConfig,
	log *slog.Logger) *ArchiveFetcher {
	c, err := commoncrawl.New(crawlCfg.RequestTimeout, crawlCfg.Retries)
	if err != nil {
		log.Error("failed to create common crawl client", slog.String("err", err.Error()))
	}
	return &ArchiveFetcher{
		crawler:    c,
		cfg:        cfg,
		crawlCfg:   crawlCfg,
		log:        log,
		localCache: cache.New(72*time.Hour, 72*time.Hour), // indexes update every month
	}
}

func (f *ArchiveFetcher) Fetch(_ context.Context, mode model.ScrapeMode,
	categories []string) ([]string, error) {
	if f.crawler == nil { // due to request limitations, the crawler may not be initialized at startup
		f.log.Info("connection retry to common crawl.")
		var err error
		f.crawler, err = commoncrawl.New(f.crawlCfg.RequestTimeout, f.crawlCfg.Retries)
		if err != nil {
			f.log.Error("failed to create common crawl client", slog.String("err", err.Error()))
			return nil, errors.New("connection to common crawl failed")
		}
	}

	target, err := listingURL(f.cfg, mode, categories)
	if err != nil {
		return nil, err
	}
	indexList, err := f.getIndexes()
	if err != nil {
		return nil, err
	}
	requestCfg := common.RequestConfig{
		URL:     target,
		Filters: []string{"statuscode:200", "mimetype:text/html"},
	}

	html := ""
	for i := 0; i < f.crawlCfg.LastCrawlIndexes && i < len(indexList); i++ {
		p, _ := f.crawler.GetPagesIndex(requestCfg, indexList[i].Id)
		if len(p) == 0 {
			f.log.Debug("no captures found", slog.String("url", target),
				slog.String("index", indexList[i].Id))
			continue
		}
		resp, err := f.crawler.GetFile(p[len(p)-1]) // last one is the most recent
		if err != nil {
			f.log.Error("failed to get file", slog.String("err", err.Error()))
			break
		}
		body := string(resp)
		html = extractHtml(&body)
		break
	}
	if html == "" {
		f.log.Info("no archived snapshot found", slog.String("url", target))
		return nil, errors.New("no archived snapshot found")
	}

	return []string{html}, nil
}

func (f *ArchiveFetcher) getIndexes() ([]Index, error) {
	if i, ok := f.localCache.Get("indexes"); ok {
		return i.([]Index), nil
	}

	response, err := common.Get(indexListUrl, f.crawler.MaxTimeout, f.crawler.MaxRetries)
	if err != nil {
		return nil, err
	}

	var indexes []Index
	err = jsoniter.Unmarshal(response, &indexes)
	if err != nil {
		return indexes, err
	}
	f.localCache.Set("indexes", indexes, cache.DefaultExpiration)

	return indexes, nil
}

func extractHtml(body *string) string {
	re := regexp.MustCompile(`(?si)<!doctype html>.*?</html>`)
	match := re.FindStringSubmatch(*body)

	if len(match) > 0 {
		return match[0]
	}
	return ""
}
