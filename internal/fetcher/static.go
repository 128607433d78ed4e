package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IliaW/futuretools-tracker/config"
	"github.com/IliaW/futuretools-tracker/internal/model"
	"github.com/gocolly/colly"
)

// StaticFetcher does a plain HTTP fetch of the listing page. It cannot
// trigger lazy loading, so it yields a single snapshot with only the
// entries the server renders up front. Useful where no browser binary is
// available.
type StaticFetcher struct {
	cfg *config.FetcherConfig
	log *slog.Logger
}

func NewStaticFetcher(cfg *config.FetcherConfig, log *slog.Logger) *StaticFetcher {
	return &StaticFetcher{cfg: cfg, log: log}
}

func (f *StaticFetcher) Fetch(_ context.Context, mode model.ScrapeMode,
	categories []string) ([]string, error) {
	target, err := listingURL(f.cfg, mode, categories)
	if err != nil {
		return nil, err
	}

	c := colly.NewCollector()
	c.SetRequestTimeout(f.cfg.ScrapeTimeout)
	c.UserAgent = f.cfg.UserAgent

	var html string
	var visitErr error
	c.OnResponse(func(resp *colly.Response) {
		html = string(resp.Body)
	})
	c.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	f.log.Info("fetching listing page.", slog.String("url", target), slog.String("mode", mode.String()))
	if err = c.Visit(target); err != nil && visitErr == nil {
		visitErr = err
	}
	if visitErr != nil {
		if errors.Is(visitErr, context.DeadlineExceeded) ||
			strings.Contains(visitErr.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("%w: %s", model.ErrFetchTimeout, visitErr.Error())
		}
		return nil, visitErr
	}

	return []string{html}, nil
}
