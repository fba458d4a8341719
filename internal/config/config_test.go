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
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromMissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Path)
	assert.Equal(t, DefaultSocketPath, cfg.App.SocketPath)
	assert.Equal(t, DefaultLeadTime, cfg.App.LeadTime)
	assert.True(t, cfg.App.FilterCredits)
	assert.Equal(t, DefaultOutputFile, cfg.App.OutputFile)
	assert.Equal(t, DefaultProviders, cfg.Search.Providers)
	assert.Equal(t, "mpris", cfg.Player.Backend)
	assert.False(t, cfg.AI.Enabled())
	assert.False(t, cfg.Tencent.Enabled())
}

func TestLoadFrom(t *testing.T) {
	path := writeConfig(t, `
[app]
socket_path = "/tmp/test.sock"
output_file = ""
lead_time = "250ms"
filter_credits = false

[log]
level = "debug"

[player]
backend = "PlayerCtl"
poll_interval = "2s"
position_threshold = "3s"

[search]
providers = ["lrclib", "netease"]
timeout = "5s"
netease_cookie = "MUSIC_U=abc"
local_dirs = ["/music/lyrics"]

[ai]
module_name = "gpt-4o-mini"
api_key = "sk-test"
base_url = "https://example.com/v1"

[redis]
enabled = true
addr = "redis:6379"
db = 2
ttl = "1h"

[tencent]
secret_id = "id"
secret_key = "key"
target_lang = "en"

[statusbar]
process = "polybar"
signal = 40
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)

	assert.Equal(t, "/tmp/test.sock", cfg.App.SocketPath)
	assert.Equal(t, DefaultOutputFile, cfg.App.OutputFile, "empty string keeps default")
	assert.Equal(t, 250*time.Millisecond, cfg.App.LeadTime)
	assert.False(t, cfg.App.FilterCredits)
	assert.Equal(t, "debug", cfg.Log.Level)

	assert.Equal(t, "playerctl", cfg.Player.Backend)
	assert.Equal(t, 2*time.Second, cfg.Player.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.Player.PositionThreshold)

	assert.Equal(t, []string{"lrclib", "netease"}, cfg.Search.Providers)
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout)
	assert.Equal(t, "MUSIC_U=abc", cfg.Search.NeteaseCookie)
	assert.Equal(t, []string{"/music/lyrics"}, cfg.Search.LocalDirs)

	assert.True(t, cfg.AI.Enabled())
	assert.Equal(t, "gpt-4o-mini", cfg.AI.ModuleName)
	assert.Equal(t, "https://example.com/v1", cfg.AI.BaseURL)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)

	assert.True(t, cfg.Tencent.Enabled())
	assert.Equal(t, "en", cfg.Tencent.TargetLang)

	assert.Equal(t, "polybar", cfg.StatusBar.Process)
	assert.Equal(t, 40, cfg.StatusBar.Signal)
}

func TestInvalidValuesKeepDefaults(t *testing.T) {
	path := writeConfig(t, `
[app]
lead_time = "soon"
output_file = "none"

[player]
backend = "winamp"
`)
	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultLeadTime, cfg.App.LeadTime)
	assert.Empty(t, cfg.App.OutputFile)
	assert.Equal(t, "mpris", cfg.Player.Backend)
}

func TestLoadFromBadSyntax(t *testing.T) {
	_, err := LoadFrom(writeConfig(t, "[app\nsocket_path = 1"))
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_CACHE_HOME", "/xdg/cache")
	assert.Equal(t, "/xdg/config/lyrics/config.toml", GetConfigPath())
	assert.Equal(t, "/xdg/cache/lyrics", Default().App.CacheDir)

	t.Setenv("HOME", "/home/me")
	assert.Equal(t, "/home/me/x", expandHome("~/x"))
	assert.Equal(t, "/abs", expandHome("/abs"))
}
