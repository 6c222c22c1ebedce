package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/yourusername/vixsrc-go/internal/domain"
)

// LoadDotEnv loads .env from the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.vixsrc")
		v.AddConfigPath("/etc/vixsrc")
	}

	// VIXSRC_DOWNLOAD_PARALLEL=4 overrides download.parallel
	v.SetEnvPrefix("VIXSRC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, config)
	if err := v.BindEnv("catalog.api_key", "VIXSRC_CATALOG_API_KEY", "TMDB_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind catalog key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, c *domain.Config) {
	defaults := map[string]interface{}{
		"provider.base_url":             c.Provider.BaseURL,
		"provider.user_agent":           c.Provider.UserAgent,
		"provider.timeout":              c.Provider.Timeout,
		"provider.default_lang":         c.Provider.DefaultLang,
		"download.output_dir":           c.Download.OutputDir,
		"download.logs_dir":             c.Download.LogsDir,
		"download.default_quality":      c.Download.DefaultQuality,
		"download.parallel":             c.Download.Parallel,
		"download.engine":               c.Download.Engine,
		"download.ytdlp_binary":         c.Download.YTDLPBinary,
		"download.ffmpeg_binary":        c.Download.FFmpegBinary,
		"download.fragment_concurrency": c.Download.FragmentConcurrency,
		"download.startup_grace":        c.Download.StartupGrace,
		"download.stop_grace":           c.Download.StopGrace,
		"download.overwrite":            c.Download.Overwrite,
		"catalog.enabled":               c.Catalog.Enabled,
		"catalog.api_key":               c.Catalog.APIKey,
		"catalog.base_url":              c.Catalog.BaseURL,
		"catalog.timeout":               c.Catalog.Timeout,
		"naming.style":                  c.Naming.Style,
		"naming.extension":              c.Naming.Extension,
		"naming.season_folders":         c.Naming.SeasonFolders,
		"progress.mode":                 c.Progress.Mode,
		"progress.refresh_interval":     c.Progress.RefreshInterval,
		"progress.log_interval":         c.Progress.LogInterval,
		"history.enabled":               c.History.Enabled,
		"history.database_path":         c.History.DatabasePath,
		"server.host":                   c.Server.Host,
		"server.port":                   c.Server.Port,
		"notification.enabled":          c.Notification.Enabled,
		"notification.sound":            c.Notification.Sound,
		"notification.method":           c.Notification.Method,
		"logging.level":                 c.Logging.Level,
		"logging.format":                c.Logging.Format,
		"logging.output_path":           c.Logging.OutputPath,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.OutputDir = expandPath(config.Download.OutputDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)
	config.History.DatabasePath = expandPath(config.History.DatabasePath)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	// $HOME first so it resolves even when the variable is unset
	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Provider.BaseURL == "" {
		return fmt.Errorf("provider base URL not configured")
	}

	if config.Provider.Timeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}

	if config.Download.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1")
	}

	if config.Download.FragmentConcurrency < 1 {
		return fmt.Errorf("fragment concurrency must be at least 1")
	}

	switch config.Download.Engine {
	case domain.EngineAuto, domain.EngineYTDLP, domain.EngineFFmpeg:
	default:
		return fmt.Errorf("unknown download engine: %s", config.Download.Engine)
	}

	if config.Download.StartupGrace < 0 {
		return fmt.Errorf("startup grace cannot be negative")
	}

	if config.Download.StopGrace <= 0 {
		return fmt.Errorf("stop grace must be positive")
	}

	switch config.Progress.Mode {
	case domain.ProgressAuto, domain.ProgressInteractive, domain.ProgressLog:
	default:
		return fmt.Errorf("unknown progress mode: %s", config.Progress.Mode)
	}

	if config.Progress.RefreshInterval <= 0 || config.Progress.LogInterval <= 0 {
		return fmt.Errorf("progress intervals must be positive")
	}

	switch config.Naming.Style {
	case domain.NamingDotted, domain.NamingSlug:
	default:
		return fmt.Errorf("unknown naming style: %s", config.Naming.Style)
	}

	if config.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive")
	}

	if config.History.Enabled && config.History.DatabasePath == "" {
		return fmt.Errorf("history database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}
