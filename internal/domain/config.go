package domain

import "time"

// Config represents the application configuration
type Config struct {
	Provider     ProviderConfig     `mapstructure:"provider"`
	Download     DownloadConfig     `mapstructure:"download"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Naming       NamingConfig       `mapstructure:"naming"`
	Progress     ProgressConfig     `mapstructure:"progress"`
	History      HistoryConfig      `mapstructure:"history"`
	Server       ServerConfig       `mapstructure:"server"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ProviderConfig describes the streaming provider
type ProviderConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	DefaultLang string        `mapstructure:"default_lang"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	OutputDir           string        `mapstructure:"output_dir"`
	LogsDir             string        `mapstructure:"logs_dir"`
	DefaultQuality      string        `mapstructure:"default_quality"`
	Parallel            int           `mapstructure:"parallel"`
	Engine              string        `mapstructure:"engine"` // auto, yt-dlp, ffmpeg
	YTDLPBinary         string        `mapstructure:"ytdlp_binary"`
	FFmpegBinary        string        `mapstructure:"ffmpeg_binary"`
	FragmentConcurrency int           `mapstructure:"fragment_concurrency"`
	StartupGrace        time.Duration `mapstructure:"startup_grace"`
	StopGrace           time.Duration `mapstructure:"stop_grace"`
	Overwrite           bool          `mapstructure:"overwrite"`
}

// CatalogConfig contains TMDB configuration
type CatalogConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NamingConfig controls output file names
type NamingConfig struct {
	Style         string `mapstructure:"style"` // dotted, slug
	Extension     string `mapstructure:"extension"`
	SeasonFolders bool   `mapstructure:"season_folders"`
}

// ProgressConfig controls the progress surface
type ProgressConfig struct {
	Mode            string        `mapstructure:"mode"` // auto, interactive, log
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	LogInterval     time.Duration `mapstructure:"log_interval"`
}

// HistoryConfig controls the task history database
type HistoryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// Engine names
const (
	EngineAuto   = "auto"
	EngineYTDLP  = "yt-dlp"
	EngineFFmpeg = "ffmpeg"
)

// Progress modes
const (
	ProgressAuto        = "auto"
	ProgressInteractive = "interactive"
	ProgressLog         = "log"
)

// Naming styles
const (
	NamingDotted = "dotted"
	NamingSlug   = "slug"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:     "https://vixsrc.to",
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			Timeout:     30 * time.Second,
			DefaultLang: "en",
		},
		Download: DownloadConfig{
			OutputDir:           "",
			LogsDir:             "$HOME/.vixsrc/logs",
			DefaultQuality:      QualityBest,
			Parallel:            1,
			Engine:              EngineAuto,
			YTDLPBinary:         "yt-dlp",
			FFmpegBinary:        "ffmpeg",
			FragmentConcurrency: 5,
			StartupGrace:        60 * time.Second,
			StopGrace:           5 * time.Second,
			Overwrite:           false,
		},
		Catalog: CatalogConfig{
			Enabled: true,
			APIKey:  "",
			BaseURL: "https://api.themoviedb.org/3",
			Timeout: 15 * time.Second,
		},
		Naming: NamingConfig{
			Style:         NamingDotted,
			Extension:     "mp4",
			SeasonFolders: true,
		},
		Progress: ProgressConfig{
			Mode:            ProgressAuto,
			RefreshInterval: 100 * time.Millisecond,
			LogInterval:     5 * time.Second,
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: "$HOME/.vixsrc/history.db",
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   true,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
		},
	}
}
