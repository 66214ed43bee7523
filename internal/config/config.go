package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Notion    NotionConfig    `yaml:"notion"`
	Sources   SourcesConfig   `yaml:"sources"`
	LLM       LLMConfig       `yaml:"llm"`
	Interests InterestsConfig `yaml:"interests"`
	Targets   TargetsConfig   `yaml:"targets"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig configures the SQLite state store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures the optional L2 score cache. Empty URL disables it.
type RedisConfig struct {
	URL string `yaml:"url"`
	TTL string `yaml:"ttl"`
}

// ParseTTL returns the cache TTL as time.Duration.
func (r RedisConfig) ParseTTL() time.Duration {
	d, err := time.ParseDuration(r.TTL)
	if err != nil || d <= 0 {
		return 48 * time.Hour
	}
	return d
}

// ScheduleConfig configures the daemon interval.
type ScheduleConfig struct {
	Interval string `yaml:"interval"`
}

// ParseInterval returns the run interval as time.Duration.
func (s ScheduleConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// NotionConfig holds the Notion integration token and database IDs.
type NotionConfig struct {
	Token          string  `yaml:"token"`
	BaseURL        string  `yaml:"base_url"`
	ToReadDB       string  `yaml:"toread_database_id"`
	InboxArticleDB string  `yaml:"inbox_article_database_id"`
	InboxYoutubeDB string  `yaml:"inbox_youtube_database_id"`
	RateLimit      float64 `yaml:"rate_limit"` // requests per second
}

// SourcesConfig holds configuration for all content sources.
type SourcesConfig struct {
	Article ArticleConfig `yaml:"article"`
	YouTube YouTubeConfig `yaml:"youtube"`
	RSS     RSSConfig     `yaml:"rss"`
}

// ArticleConfig for the article inbox.
type ArticleConfig struct {
	MaxContentChars int    `yaml:"max_content_chars"`
	UserAgent       string `yaml:"user_agent"`
}

// YouTubeConfig for the YouTube inbox.
type YouTubeConfig struct {
	APIKey    string   `yaml:"api_key"`
	Channels  []string `yaml:"channels"`
	Languages []string `yaml:"languages"`
	MaxVideos int      `yaml:"max_videos"`
}

// RSSConfig for RSS/Atom feeds.
type RSSConfig struct {
	Feeds   []FeedItem `yaml:"feeds"`
	MaxAge  string     `yaml:"max_age"`
	Exclude []string   `yaml:"exclude_keywords"`
}

// ParseMaxAge returns how far back a first sync looks.
func (r RSSConfig) ParseMaxAge() time.Duration {
	d, err := time.ParseDuration(r.MaxAge)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// LLMConfig configures summarization and ranking.
type LLMConfig struct {
	Provider        string `yaml:"provider"` // "openai", "anthropic" or "none"
	Model           string `yaml:"model"`
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	MaxContentChars int    `yaml:"max_content_chars"`
}

// Enabled reports whether an LLM provider is usable.
func (l LLMConfig) Enabled() bool {
	p := strings.ToLower(strings.TrimSpace(l.Provider))
	return p != "" && p != "none" && l.APIKey != ""
}

// InterestsConfig describes what the reader cares about. Used by the heuristic scorer.
type InterestsConfig struct {
	Keywords []string `yaml:"keywords"`
	Exclude  []string `yaml:"exclude"`
}

// TargetsConfig configures push destinations other than Notion.
type TargetsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook pushes.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook pushes.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook pushes.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig selects log level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./curator.db"},
		Redis:    RedisConfig{TTL: "48h"},
		Schedule: ScheduleConfig{Interval: "1h"},
		Notion: NotionConfig{
			BaseURL:   "https://api.notion.com",
			RateLimit: 3,
		},
		Sources: SourcesConfig{
			Article: ArticleConfig{
				MaxContentChars: 20000,
				UserAgent:       "curator/1.0",
			},
			YouTube: YouTubeConfig{
				Languages: []string{"en"},
				MaxVideos: 20,
			},
			RSS: RSSConfig{MaxAge: "24h"},
		},
		LLM: LLMConfig{
			Provider:        "openai",
			Model:           "gpt-4o-mini",
			MaxContentChars: 8000,
		},
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CURATOR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("NOTION_TOKEN"); v != "" {
		cfg.Notion.Token = v
	}
	if v := os.Getenv("NOTION_DATABASE_ID_TOREAD"); v != "" {
		cfg.Notion.ToReadDB = v
	}
	if v := os.Getenv("NOTION_DATABASE_ID_INBOX_ARTICLE"); v != "" {
		cfg.Notion.InboxArticleDB = v
	}
	if v := os.Getenv("NOTION_DATABASE_ID_INBOX_YOUTUBE"); v != "" {
		cfg.Notion.InboxYoutubeDB = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.Sources.YouTube.APIKey = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Targets.Slack.WebhookURL = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Targets.Discord.WebhookURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Provider = "anthropic"
		if cfg.LLM.Model == "gpt-4o-mini" {
			cfg.LLM.Model = ""
		}
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
