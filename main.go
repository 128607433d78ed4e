package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/IliaW/futuretools-tracker/config"
	"github.com/IliaW/futuretools-tracker/internal/aws_s3"
	"github.com/IliaW/futuretools-tracker/internal/extractor"
	"github.com/IliaW/futuretools-tracker/internal/fetcher"
	"github.com/IliaW/futuretools-tracker/internal/model"
	"github.com/IliaW/futuretools-tracker/internal/store"
	"github.com/IliaW/futuretools-tracker/internal/tracker"
	"github.com/lmittmann/tint"
)

var (
	cfg *config.Config
	log *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg = config.MustLoad()
	log = setupLogger()
	log.Info("starting "+cfg.ServiceName, slog.String("env", cfg.Env), slog.String("version", cfg.Version))

	snapshotFetcher, err := fetcher.NewFetcher(cfg, log)
	if err != nil {
		log.Error("failed to create fetcher.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	recordExtractor := extractor.NewExtractor(cfg.SelectorSettings, cfg.FetcherSettings.BaseURL, log)
	recordStore := store.NewCsvStore(cfg.StoreSettings, log)
	var s3 aws_s3.BucketClient
	if cfg.S3Settings.Enabled {
		s3 = aws_s3.NewS3BucketClient(cfg.S3Settings, log)
	}
	service := tracker.NewService(snapshotFetcher, recordExtractor, recordStore, s3, cfg, log)

	if err = run(ctx, service, os.Args[1:]); err != nil {
		log.Error("command failed.", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, service *tracker.Service, args []string) error {
	command := "load"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "scrape":
		modeArg := "recent-only"
		if len(args) > 1 {
			modeArg = args[1]
		}
		mode, err := model.ParseScrapeMode(modeArg)
		if err != nil {
			return err
		}
		records, err := service.Scrape(ctx, mode, args[2:])
		if err != nil {
			return err
		}
		log.Info("scrape complete.", slog.Int("records", len(records)))
		printStats(service)
		return nil
	case "load":
		records, meta, err := service.LoadCache()
		if err != nil {
			return err
		}
		if meta == nil {
			log.Info("no cached data available. Run 'scrape' first.")
			return nil
		}
		log.Info("cache loaded.", slog.Int("records", len(records)),
			slog.Time("last_updated", meta.LastUpdated), slog.String("mode", meta.Mode))
		if !service.Fresh() {
			log.Warn("cached data is stale.", slog.Duration("ttl", cfg.StoreSettings.CacheTTL))
		}
		printStats(service)
		return nil
	case "clear":
		return service.ClearCache()
	case "export":
		return export(service, args[1:])
	default:
		return fmt.Errorf("unknown command: %q (expected scrape, load, clear or export)", command)
	}
}

// export loads the cache, applies an optional text filter and writes the
// subset to a timestamped CSV in the working directory.
func export(service *tracker.Service, args []string) error {
	_, meta, err := service.LoadCache()
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("nothing to export: cache is empty")
	}

	query := model.FilterQuery{}
	if len(args) > 0 {
		query.Text = args[0]
	}
	subset, err := service.Filter(query)
	if err != nil {
		return err
	}

	filename := store.ExportFilename(time.Now())
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	if err = service.Export(f, subset); err != nil {
		return err
	}
	log.Info("export written.", slog.String("file", filename), slog.Int("records", len(subset)))

	return nil
}

func printStats(service *tracker.Service) {
	stats := service.Stats()
	log.Info("record set stats.", slog.Int("total", stats.Total),
		slog.Int("categories", stats.Categories), slog.Int("free", stats.Free),
		slog.Int("paid", stats.Paid))
}

func setupLogger() *slog.Logger {
	resolvedLogLevel := func() slog.Level {
		envLogLevel := strings.ToLower(cfg.LogLevel)
		switch envLogLevel {
		case "info":
			return slog.LevelInfo
		case "error":
			return slog.LevelError
		default:
			return slog.LevelDebug
		}
	}

	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	var logger *slog.Logger
	if strings.ToLower(cfg.LogType) == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource:   true,
			Level:       resolvedLogLevel(),
			ReplaceAttr: replaceAttrs}))
	} else {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:   true,
			Level:       resolvedLogLevel(),
			ReplaceAttr: replaceAttrs,
			NoColor:     false}))
	}

	slog.SetDefault(logger)
	logger.Debug("debug messages are enabled.")

	return logger
}
