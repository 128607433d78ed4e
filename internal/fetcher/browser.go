package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/IliaW/futuretools-tracker/config"
	"github.com/IliaW/futuretools-tracker/internal/model"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// maxPages bounds the "Next Page" loop in case the pager never terminates.
const maxPages = 50

const scrollBottomJS = `window.scrollTo(0, document.body.scrollHeight);`
const scrollHeightJS = `document.body.scrollHeight`

// clickPagerJS clicks a visible "Next Page" or "Load More" control if one
// exists and reports whether it did.
const clickPagerJS = `(() => {
	const els = Array.from(document.querySelectorAll('a, button'));
	const el = els.find(e => /next page|load more/i.test(e.textContent || '') && e.offsetParent !== null);
	if (!el) { return false; }
	el.click();
	return true;
})()`

// BrowserFetcher drives a headless Chrome instance. It scrolls the listing
// until the page height is stable, captures the rendered document, and
// follows the pager until it runs out.
type BrowserFetcher struct {
	cfg *config.FetcherConfig
	log *slog.Logger
}

func NewBrowserFetcher(cfg *config.FetcherConfig, log *slog.Logger) *BrowserFetcher {
	return &BrowserFetcher{cfg: cfg, log: log}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, mode model.ScrapeMode,
	categories []string) ([]string, error) {
	target, err := listingURL(f.cfg, mode, categories)
	if err != nil {
		return nil, err
	}

	tCtx, cancelTCtx := context.WithTimeout(ctx, f.cfg.ScrapeTimeout)
	defer cancelTCtx()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.UserAgent(f.cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(tCtx, opts...)
	defer cancelAlloc()
	bCtx, cancelBCtx := chromedp.NewContext(allocCtx)
	defer cancelBCtx()

	f.log.Info("loading listing page.", slog.String("url", target), slog.String("mode", mode.String()))
	err = chromedp.Run(bCtx,
		chromedp.Tasks{
			network.Enable(),
			enableLifecycleEvents(),
			navigateAndWaitFor(target, "networkIdle"),
		})
	if err != nil {
		return nil, f.mapError(err)
	}

	var snapshots []string
	for len(snapshots) < maxPages {
		if err = f.scrollToEnd(bCtx); err != nil {
			return nil, f.mapError(err)
		}
		html, err := outerHTML(bCtx)
		if err != nil {
			return nil, f.mapError(err)
		}
		snapshots = append(snapshots, html)

		clicked, err := f.clickPager(bCtx)
		if err != nil {
			return nil, f.mapError(err)
		}
		if !clicked {
			break
		}
		f.log.Debug("pager followed.", slog.Int("pages", len(snapshots)))
	}
	f.log.Info("listing fetched.", slog.Int("snapshots", len(snapshots)))

	return snapshots, nil
}

// scrollToEnd keeps scrolling to the bottom until the document height stops
// growing for the configured number of consecutive attempts, bounded by
// max_scrolls so a markup change cannot loop forever.
func (f *BrowserFetcher) scrollToEnd(ctx context.Context) error {
	var lastHeight, newHeight int64
	stable := 0
	for i := 1; i <= f.cfg.MaxScrolls; i++ {
		err := chromedp.Run(ctx,
			chromedp.Evaluate(scrollBottomJS, nil),
			chromedp.Sleep(f.cfg.ScrollWait),
			chromedp.Evaluate(scrollHeightJS, &newHeight),
		)
		if err != nil {
			return err
		}
		if newHeight == lastHeight {
			stable++
			if stable >= f.cfg.StableScrolls {
				return nil
			}
		} else {
			stable = 0
		}
		lastHeight = newHeight
		if i%10 == 0 {
			f.log.Debug("scrolling.", slog.Int("scrolls", i), slog.Int64("height", newHeight))
		}
	}
	f.log.Warn("max scroll attempts reached.", slog.Int("max_scrolls", f.cfg.MaxScrolls))

	return nil
}

func (f *BrowserFetcher) clickPager(ctx context.Context) (bool, error) {
	var clicked bool
	err := chromedp.Run(ctx, chromedp.Evaluate(clickPagerJS, &clicked))
	if err != nil || !clicked {
		return false, err
	}
	// Give the new page content time to render before the next scroll pass.
	err = chromedp.Run(ctx, chromedp.Sleep(2*f.cfg.ScrollWait))

	return true, err
}

func (f *BrowserFetcher) mapError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: page did not respond within %s", model.ErrFetchTimeout,
			f.cfg.ScrapeTimeout)
	case errors.Is(err, exec.ErrNotFound) || strings.Contains(err.Error(), "executable file not found"):
		return fmt.Errorf("%w: %s", model.ErrBrowserUnavailable, err.Error())
	default:
		return err
	}
}

func outerHTML(ctx context.Context) (string, error) {
	var html string
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		rootNode, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		html, err = dom.GetOuterHTML().WithNodeID(rootNode.NodeID).Do(ctx)
		return err
	}))

	return html, err
}

func enableLifecycleEvents() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		err := page.Enable().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetLifecycleEventsEnabled(true).Do(ctx)
	}
}

func navigateAndWaitFor(url string, eventName string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		_, _, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		return waitFor(ctx, eventName)
	}
}

func waitFor(ctx context.Context, eventName string) error {
	ch := make(chan struct{})
	cctx, cancel := context.WithCancel(ctx)
	chromedp.ListenTarget(cctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventLifecycleEvent:
			if e.Name == eventName {
				cancel()
				close(ch)
			}
		}
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
