package config

import (
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env              string          `mapstructure:"env"`
	LogLevel         string          `mapstructure:"log_level"`
	LogType          string          `mapstructure:"log_type"`
	ServiceName      string          `mapstructure:"service_name"`
	Version          string          `mapstructure:"version"`
	FetcherSettings  *FetcherConfig  `mapstructure:"fetcher"`
	SelectorSettings *SelectorConfig `mapstructure:"selectors"`
	StoreSettings    *StoreConfig    `mapstructure:"store"`
	CrawlerSettings  *CrawlerConfig  `mapstructure:"crawler"`
	S3Settings       *S3Config       `mapstructure:"s3"`
}

type FetcherConfig struct {
	Mechanism     string        `mapstructure:"mechanism"`
	BaseURL       string        `mapstructure:"base_url"`
	NewlyAddedURL string        `mapstructure:"newly_added_url"`
	ScrapeTimeout time.Duration `mapstructure:"scrape_timeout"`
	ScrollWait    time.Duration `mapstructure:"scroll_wait"`
	MaxScrolls    int           `mapstructure:"max_scrolls"`
	StableScrolls int           `mapstructure:"stable_scrolls"`
	UserAgent     string        `mapstructure:"user_agent"`
	Headless      bool          `mapstructure:"headless"`
}

// SelectorConfig holds the structural selectors for the listing markup.
// Kept in configuration so a site redesign is a config change, not a rebuild.
type SelectorConfig struct {
	Card              string   `mapstructure:"card"`
	NameLink          string   `mapstructure:"name_link"`
	NameLinkExclude   string   `mapstructure:"name_link_exclude"`
	DescriptionBox    string   `mapstructure:"description_box"`
	CategoryContainer string   `mapstructure:"category_container"`
	CategoryText      []string `mapstructure:"category_text"`
	TagLinkMarker     string   `mapstructure:"tag_link_marker"`
	ToolLinkPrefix    string   `mapstructure:"tool_link_prefix"`
}

type StoreConfig struct {
	CacheFile    string        `mapstructure:"cache_file"`
	MetadataFile string        `mapstructure:"metadata_file"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	DedupKey     string        `mapstructure:"dedup_key"`
}

type CrawlerConfig struct {
	RequestTimeout   int `mapstructure:"request_timeout"`
	Retries          int `mapstructure:"retries"`
	LastCrawlIndexes int `mapstructure:"last_crawl_indexes"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	AwsAccessKey    string `mapstructure:"aws_access_key"`
	AwsSecretKey    string `mapstructure:"aws_secret_key"`
	AwsBaseEndpoint string `mapstructure:"aws_base_endpoint"`
	Region          string `mapstructure:"region"`
	BucketName      string `mapstructure:"bucket_name"`
	KeyPrefix       string `mapstructure:"key_prefix"`
}

func MustLoad() *Config {
	viper.AddConfigPath(path.Join("."))
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		slog.Error("can't initialize config file.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("error unmarshalling viper config.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return &cfg
}
