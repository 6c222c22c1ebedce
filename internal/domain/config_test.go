package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config)
	assert.Equal(t, "https://vixsrc.to", config.Provider.BaseURL)
	assert.Equal(t, 30*time.Second, config.Provider.Timeout)
	assert.Equal(t, "en", config.Provider.DefaultLang)
	assert.Equal(t, QualityBest, config.Download.DefaultQuality)
	assert.Equal(t, 1, config.Download.Parallel)
	assert.Equal(t, EngineAuto, config.Download.Engine)
	assert.Equal(t, 5, config.Download.FragmentConcurrency)
	assert.False(t, config.Download.Overwrite)
	assert.Equal(t, "https://api.themoviedb.org/3", config.Catalog.BaseURL)
	assert.Equal(t, NamingDotted, config.Naming.Style)
	assert.Equal(t, "mp4", config.Naming.Extension)
	assert.Equal(t, ProgressAuto, config.Progress.Mode)
	assert.True(t, config.History.Enabled)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8080, config.Server.Port)
	assert.False(t, config.Notification.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
}
