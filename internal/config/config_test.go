package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
subreddits = ["golang"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "subdigest", cfg.App.Name)
	assert.Equal(t, 168*time.Hour, cfg.App.IntervalDuration())
	assert.Equal(t, 8, cfg.App.FetchCap)
	assert.Equal(t, "https://www.reddit.com", cfg.Reddit.BaseURL)
	assert.Equal(t, "week", cfg.Reddit.TimeWindow)
	assert.Equal(t, 10, cfg.Reddit.Limit)
	assert.Equal(t, 10*time.Second, cfg.Reddit.TimeoutDuration())
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "./subdigest.db", cfg.Storage.Path)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 50, cfg.Server.FeedSize)
	assert.Equal(t, []string{"golang"}, cfg.Subreddits)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
subreddits = ["golang", "rust"]

[app]
name = "weekly"
interval = "24h"
fetch_cap = 4

[reddit]
time_window = "month"
limit = 25

[server]
enabled = true
port = "9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "weekly", cfg.App.Name)
	assert.Equal(t, 24*time.Hour, cfg.App.IntervalDuration())
	assert.Equal(t, 4, cfg.App.FetchCap)
	assert.Equal(t, "month", cfg.Reddit.TimeWindow)
	assert.Equal(t, 25, cfg.Reddit.Limit)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		errContains string
	}{
		{
			name:        "invalid interval",
			content:     "subreddits = [\"golang\"]\n[app]\ninterval = \"weekly\"\n",
			errContains: "invalid interval",
		},
		{
			name:        "invalid time window",
			content:     "subreddits = [\"golang\"]\n[reddit]\ntime_window = \"fortnight\"\n",
			errContains: "invalid time_window",
		},
		{
			name:        "limit out of range",
			content:     "subreddits = [\"golang\"]\n[reddit]\nlimit = 500\n",
			errContains: "limit must be between",
		},
		{
			name:        "no subreddits and no server",
			content:     "[server]\nenabled = false\n",
			errContains: "at least one subreddit",
		},
		{
			name:        "discord enabled without token",
			content:     "subreddits = [\"golang\"]\n[discord]\nenabled = true\nchannel_id = \"123\"\n",
			errContains: "bot_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestLoadAllowsEmptySubredditsWithServer(t *testing.T) {
	path := writeConfig(t, `
[server]
enabled = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Subreddits)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
