package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSocketPath        = "/tmp/lyrics_app.sock"
	DefaultOutputFile        = "/tmp/lyrics"
	DefaultLeadTime          = 100 * time.Millisecond
	DefaultPollInterval      = time.Second
	DefaultPositionThreshold = 1500 * time.Millisecond
	DefaultSearchTimeout     = 10 * time.Second
	DefaultRedisTTL          = 30 * 24 * time.Hour
	DefaultStatusBarProcess  = "i3blocks"
	DefaultStatusBarSignal   = 55 // SIGRTMIN+21
)

// DefaultProviders 默认启用的歌词来源，按优先级排列
var DefaultProviders = []string{"local", "netease", "qqmusic", "kugou", "lrclib"}

func getDefaultCacheDir() string {
	// 优先使用 XDG_CACHE_HOME 环境变量
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "lyrics")
	}

	// 否则使用用户主目录下的 .cache
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// 如果获取不到用户主目录，回退到当前目录
		return "lyrics_cache"
	}

	return filepath.Join(homeDir, ".cache", "lyrics")
}

// TomlConfig TOML配置文件结构
type TomlConfig struct {
	App struct {
		SocketPath    string `toml:"socket_path"`
		OutputFile    string `toml:"output_file"`
		CacheDir      string `toml:"cache_dir"`
		LeadTime      string `toml:"lead_time"`
		FilterCredits *bool  `toml:"filter_credits"`
	} `toml:"app"`

	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`

	Player struct {
		Backend           string `toml:"backend"`
		MPRISService      string `toml:"mpris_service"`
		PollInterval      string `toml:"poll_interval"`
		PositionThreshold string `toml:"position_threshold"`
	} `toml:"player"`

	Search struct {
		Providers     []string `toml:"providers"`
		Timeout       string   `toml:"timeout"`
		NeteaseCookie string   `toml:"netease_cookie"`
		QQMusicCookie string   `toml:"qqmusic_cookie"`
		LRCLibURL     string   `toml:"lrclib_url"`
		LocalDirs     []string `toml:"local_dirs"`
	} `toml:"search"`

	AI struct {
		ModuleName string `toml:"module_name"`
		APIKey     string `toml:"api_key"`
		BaseURL    string `toml:"base_url"` // for OpenAI
	} `toml:"ai"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		TTL      string `toml:"ttl"`
	} `toml:"redis"`

	Tencent struct {
		SecretID   string `toml:"secret_id"`
		SecretKey  string `toml:"secret_key"`
		TargetLang string `toml:"target_lang"`
		Region     string `toml:"region"`
	} `toml:"tencent"`

	StatusBar struct {
		Process string `toml:"process"`
		Signal  int    `toml:"signal"`
	} `toml:"statusbar"`
}

// AppConfig 应用配置
type AppConfig struct {
	SocketPath    string
	OutputFile    string // 配置为 "none" 时不写文件
	CacheDir      string
	LeadTime      time.Duration // 歌词提前显示的时间
	FilterCredits bool
}

// LogConfig 日志配置
type LogConfig struct {
	Level string
}

// PlayerConfig 播放器配置
type PlayerConfig struct {
	Backend           string // mpris | playerctl
	MPRISService      string
	PollInterval      time.Duration
	PositionThreshold time.Duration
}

// SearchConfig 歌词搜索配置
type SearchConfig struct {
	Providers     []string
	Timeout       time.Duration
	NeteaseCookie string
	QQMusicCookie string
	LRCLibURL     string
	LocalDirs     []string
}

// AIConfig AI配置
type AIConfig struct {
	ModuleName string
	APIKey     string
	BaseURL    string
}

// Enabled 是否配置了 AI
func (c AIConfig) Enabled() bool {
	return c.APIKey != ""
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// TencentConfig 腾讯云机器翻译配置
type TencentConfig struct {
	SecretID   string
	SecretKey  string
	TargetLang string
	Region     string
}

// Enabled 是否配置了腾讯云密钥
func (c TencentConfig) Enabled() bool {
	return c.SecretID != "" && c.SecretKey != ""
}

// StatusBarConfig 状态栏通知配置
type StatusBarConfig struct {
	Process string // 为空时不发送信号
	Signal  int
}

// Config 主配置结构
type Config struct {
	App       AppConfig
	Log       LogConfig
	Player    PlayerConfig
	Search    SearchConfig
	AI        AIConfig
	Redis     RedisConfig
	Tencent   TencentConfig
	StatusBar StatusBarConfig

	Path string // 加载的配置文件，未找到时为空
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			SocketPath:    DefaultSocketPath,
			OutputFile:    DefaultOutputFile,
			CacheDir:      getDefaultCacheDir(),
			LeadTime:      DefaultLeadTime,
			FilterCredits: true,
		},
		Log: LogConfig{Level: "info"},
		Player: PlayerConfig{
			Backend:           "mpris",
			PollInterval:      DefaultPollInterval,
			PositionThreshold: DefaultPositionThreshold,
		},
		Search: SearchConfig{
			Providers: append([]string(nil), DefaultProviders...),
			Timeout:   DefaultSearchTimeout,
		},
		AI: AIConfig{
			ModuleName: "gemini",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  DefaultRedisTTL,
		},
		Tencent: TencentConfig{
			TargetLang: "zh",
		},
		StatusBar: StatusBarConfig{
			Process: DefaultStatusBarProcess,
			Signal:  DefaultStatusBarSignal,
		},
	}
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	// 优先使用 XDG_CONFIG_HOME 环境变量
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "lyrics", "config.toml")
	}

	// 否则使用用户主目录下的 .config
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot get user home directory")
		return "config.toml" // 回退到当前目录
	}

	return filepath.Join(homeDir, ".config", "lyrics", "config.toml")
}

// Load 从默认路径加载配置，出错时使用默认值
func Load() *Config {
	cfg, err := LoadFrom(GetConfigPath())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load config file, using default configuration")
		return Default()
	}
	return cfg
}

// LoadFrom 从指定路径加载配置，文件不存在时返回默认配置
func LoadFrom(path string) (*Config, error) {
	config := Default()

	var tomlConfig TomlConfig
	if _, err := toml.DecodeFile(path, &tomlConfig); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info().Str("path", path).Msg("Config file not found, using defaults")
			return config, nil
		}
		return nil, err
	}
	config.Path = path
	log.Info().Str("path", path).Msg("Loaded config")

	config.apply(&tomlConfig)
	return config, nil
}

func (config *Config) apply(t *TomlConfig) {
	// App
	setString(&config.App.SocketPath, t.App.SocketPath)
	if t.App.OutputFile == "none" {
		config.App.OutputFile = ""
	} else {
		setString(&config.App.OutputFile, t.App.OutputFile)
	}
	setString(&config.App.CacheDir, expandHome(t.App.CacheDir))
	setDuration(&config.App.LeadTime, t.App.LeadTime, "app.lead_time")
	if t.App.FilterCredits != nil {
		config.App.FilterCredits = *t.App.FilterCredits
	}

	setString(&config.Log.Level, t.Log.Level)

	// Player
	setString(&config.Player.Backend, strings.ToLower(t.Player.Backend))
	setString(&config.Player.MPRISService, t.Player.MPRISService)
	setDuration(&config.Player.PollInterval, t.Player.PollInterval, "player.poll_interval")
	setDuration(&config.Player.PositionThreshold, t.Player.PositionThreshold, "player.position_threshold")

	// Search
	if len(t.Search.Providers) > 0 {
		config.Search.Providers = t.Search.Providers
	}
	setDuration(&config.Search.Timeout, t.Search.Timeout, "search.timeout")
	setString(&config.Search.NeteaseCookie, t.Search.NeteaseCookie)
	setString(&config.Search.QQMusicCookie, t.Search.QQMusicCookie)
	setString(&config.Search.LRCLibURL, t.Search.LRCLibURL)
	for _, dir := range t.Search.LocalDirs {
		config.Search.LocalDirs = append(config.Search.LocalDirs, expandHome(dir))
	}

	// AI
	setString(&config.AI.ModuleName, t.AI.ModuleName)
	setString(&config.AI.APIKey, t.AI.APIKey)
	setString(&config.AI.BaseURL, t.AI.BaseURL)

	// Redis
	config.Redis.Enabled = t.Redis.Enabled
	setString(&config.Redis.Addr, t.Redis.Addr)
	setString(&config.Redis.Password, t.Redis.Password)
	if t.Redis.DB != 0 {
		config.Redis.DB = t.Redis.DB
	}
	setDuration(&config.Redis.TTL, t.Redis.TTL, "redis.ttl")

	// Tencent
	setString(&config.Tencent.SecretID, t.Tencent.SecretID)
	setString(&config.Tencent.SecretKey, t.Tencent.SecretKey)
	setString(&config.Tencent.TargetLang, t.Tencent.TargetLang)
	setString(&config.Tencent.Region, t.Tencent.Region)

	// StatusBar
	setString(&config.StatusBar.Process, t.StatusBar.Process)
	if t.StatusBar.Signal > 0 {
		config.StatusBar.Signal = t.StatusBar.Signal
	}

	if config.Player.Backend != "mpris" && config.Player.Backend != "playerctl" {
		log.Warn().Str("backend", config.Player.Backend).Msg("Unknown player backend, using mpris")
		config.Player.Backend = "mpris"
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v, key string) {
	if v == "" {
		return
	}
	duration, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration format, using default")
		return
	}
	*dst = duration
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
