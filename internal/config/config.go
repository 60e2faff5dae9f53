package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App        AppConfig     `toml:"app"`
	Reddit     RedditConfig  `toml:"reddit"`
	Subreddits []string      `toml:"subreddits"`
	Storage    StorageConfig `toml:"storage"`
	Cache      CacheConfig   `toml:"cache"`
	Server     ServerConfig  `toml:"server"`
	Discord    DiscordConfig `toml:"discord"`
}

type AppConfig struct {
	Name     string `toml:"name"`
	Interval string `toml:"interval"`
	RunOnce  bool   `toml:"run_once"`
	FetchCap int    `toml:"fetch_cap"`
}

type RedditConfig struct {
	BaseURL    string `toml:"base_url"`
	UserAgent  string `toml:"user_agent"`
	TimeWindow string `toml:"time_window"`
	Limit      int    `toml:"limit"`
	Timeout    string `toml:"timeout"`
}

type StorageConfig struct {
	Type string `toml:"type"`
	Path string `toml:"path"`
}

type CacheConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	TTL      string `toml:"ttl"`
}

type ServerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Port     string `toml:"port"`
	FeedSize int    `toml:"feed_size"`
}

type DiscordConfig struct {
	Enabled   bool   `toml:"enabled"`
	BotToken  string `toml:"bot_token"`
	ChannelID string `toml:"channel_id"`
	Sleep     string `toml:"sleep"`
}

var validTimeWindows = map[string]bool{
	"hour":  true,
	"day":   true,
	"week":  true,
	"month": true,
	"year":  true,
	"all":   true,
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.App.Name == "" {
		config.App.Name = "subdigest"
	}

	if config.App.Interval == "" {
		config.App.Interval = "168h"
	}

	if _, err := time.ParseDuration(config.App.Interval); err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}

	if config.App.FetchCap == 0 {
		config.App.FetchCap = 8
	}

	if config.Reddit.BaseURL == "" {
		config.Reddit.BaseURL = "https://www.reddit.com"
	}

	if config.Reddit.UserAgent == "" {
		config.Reddit.UserAgent = "subdigest/1.0 (top posts aggregator)"
	}

	if config.Reddit.TimeWindow == "" {
		config.Reddit.TimeWindow = "week"
	}

	if !validTimeWindows[config.Reddit.TimeWindow] {
		return fmt.Errorf("invalid time_window: %s", config.Reddit.TimeWindow)
	}

	if config.Reddit.Limit == 0 {
		config.Reddit.Limit = 10
	}

	if config.Reddit.Limit < 1 || config.Reddit.Limit > 100 {
		return fmt.Errorf("limit must be between 1 and 100, got %d", config.Reddit.Limit)
	}

	if config.Reddit.Timeout == "" {
		config.Reddit.Timeout = "10s"
	}

	if _, err := time.ParseDuration(config.Reddit.Timeout); err != nil {
		return fmt.Errorf("invalid reddit timeout: %w", err)
	}

	if config.Storage.Type == "" {
		config.Storage.Type = "sqlite"
	}

	if config.Storage.Path == "" {
		config.Storage.Path = "./subdigest.db"
	}

	if config.Cache.Addr == "" {
		config.Cache.Addr = "localhost:6379"
	}

	if config.Cache.TTL == "" {
		config.Cache.TTL = "336h"
	}

	if _, err := time.ParseDuration(config.Cache.TTL); err != nil {
		return fmt.Errorf("invalid cache ttl: %w", err)
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	if config.Server.FeedSize == 0 {
		config.Server.FeedSize = 50
	}

	if config.Discord.Enabled {
		if config.Discord.BotToken == "" {
			return fmt.Errorf("discord: bot_token is required")
		}
		if config.Discord.ChannelID == "" {
			return fmt.Errorf("discord: channel_id is required")
		}
	}

	if config.Discord.Sleep == "" {
		config.Discord.Sleep = "1s"
	}

	if _, err := time.ParseDuration(config.Discord.Sleep); err != nil {
		return fmt.Errorf("invalid discord sleep: %w", err)
	}

	if len(config.Subreddits) == 0 && !config.Server.Enabled {
		return fmt.Errorf("at least one subreddit required when the server is disabled")
	}

	return nil
}

func (a AppConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(a.Interval)
	return d
}

func (r RedditConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(r.Timeout)
	return d
}

func (c CacheConfig) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

func (d DiscordConfig) SleepDuration() time.Duration {
	s, _ := time.ParseDuration(d.Sleep)
	return s
}
