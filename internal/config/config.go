package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultUserAgent is the desktop browser identity sent with every request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Config stores all configuration for the application.
type Config struct {
	ArticleURL     string `mapstructure:"ARTICLE_URL"`
	OutputHTML     string `mapstructure:"OUTPUT_HTML"`
	ImagesDir      string `mapstructure:"IMAGES_DIR"`
	MarkdownOutput string `mapstructure:"MARKDOWN_OUTPUT"`
	ManifestOutput string `mapstructure:"MANIFEST_OUTPUT"`

	UserAgents       []string      `mapstructure:"USER_AGENTS"`
	Proxies          []string      `mapstructure:"PROXIES"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ImageDelay       time.Duration `mapstructure:"IMAGE_DELAY"`
	ImageWorkers     int           `mapstructure:"IMAGE_WORKERS"`
	Render           bool          `mapstructure:"RENDER"`
	ContentSelectors []string      `mapstructure:"CONTENT_SELECTORS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	ServerPort        string `mapstructure:"SERVER_PORT"`
	ArchiveRoot       string `mapstructure:"ARCHIVE_ROOT"`
	ArchiveWorkers    int    `mapstructure:"ARCHIVE_WORKERS"`
	PostgresURL       string `mapstructure:"POSTGRES_URL"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	DeduplicationDays int    `mapstructure:"DEDUPLICATION_DAYS"`
}

// ListSeparator splits list values given through the environment. User agents
// and CSS selector groups contain commas, so commas cannot be used.
const ListSeparator = ";"

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"url":       "ARTICLE_URL",
	"output":    "OUTPUT_HTML",
	"images":    "IMAGES_DIR",
	"markdown":  "MARKDOWN_OUTPUT",
	"manifest":  "MANIFEST_OUTPUT",
	"timeout":   "REQUEST_TIMEOUT",
	"delay":     "IMAGE_DELAY",
	"workers":   "IMAGE_WORKERS",
	"render":    "RENDER",
	"selector":  "CONTENT_SELECTORS",
	"log-level": "LOG_LEVEL",
	"port":      "SERVER_PORT",
	"root":      "ARCHIVE_ROOT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ARTICLE_URL", "https://note.com/handshuffling/n/n83bbad08cbbd")
	v.SetDefault("OUTPUT_HTML", "article.html")
	v.SetDefault("IMAGES_DIR", "images")
	v.SetDefault("MARKDOWN_OUTPUT", "")
	v.SetDefault("MANIFEST_OUTPUT", "")
	v.SetDefault("USER_AGENTS", []string{DefaultUserAgent})
	v.SetDefault("PROXIES", []string{})
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("IMAGE_DELAY", 500*time.Millisecond)
	v.SetDefault("IMAGE_WORKERS", 1)
	v.SetDefault("RENDER", false)
	v.SetDefault("CONTENT_SELECTORS", []string{})
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ARCHIVE_ROOT", "archives")
	v.SetDefault("ARCHIVE_WORKERS", 2)
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("DEDUPLICATION_DAYS", 2)
}

// Load reads configuration from environment variables and, when given,
// command line flags. Flags that were set explicitly win over the environment.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(ListSeparator),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, err
	}
	cfg.UserAgents = compact(cfg.UserAgents)
	cfg.Proxies = compact(cfg.Proxies)
	cfg.ContentSelectors = compact(cfg.ContentSelectors)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.ImageDelay < 0 {
		return fmt.Errorf("IMAGE_DELAY must not be negative, got %s", c.ImageDelay)
	}
	if c.ImageWorkers < 1 {
		return fmt.Errorf("IMAGE_WORKERS must be at least 1, got %d", c.ImageWorkers)
	}
	if c.ArchiveWorkers < 1 {
		return fmt.Errorf("ARCHIVE_WORKERS must be at least 1, got %d", c.ArchiveWorkers)
	}
	if c.OutputHTML == "" {
		return fmt.Errorf("OUTPUT_HTML is required")
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = []string{DefaultUserAgent}
	}
	return nil
}

// DeduplicationTTL is how long an archived URL is considered fresh.
func (c *Config) DeduplicationTTL() time.Duration {
	return time.Duration(c.DeduplicationDays) * 24 * time.Hour
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
