package infrastructure

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vixsrc-go/internal/domain"
	"go.uber.org/zap"
)

// recordingSink captures progress events
type recordingSink struct {
	mu       sync.Mutex
	percents []float64
}

func (s *recordingSink) Queued(string)         {}
func (s *recordingSink) Started(string)        {}
func (s *recordingSink) Finished(string, bool) {}
func (s *recordingSink) Percent(_ string, p float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.percents = append(s.percents, p)
}

const fakeEngineArgs = `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script engines are not supported on windows")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func newTestExecutor(t *testing.T, binary string) (*Executor, string) {
	t.Helper()
	dir := t.TempDir()
	config := &domain.DownloadConfig{
		LogsDir:             filepath.Join(dir, "logs"),
		Engine:              domain.EngineYTDLP,
		YTDLPBinary:         binary,
		FFmpegBinary:        "ffmpeg",
		FragmentConcurrency: 5,
		StartupGrace:        5 * time.Second,
		StopGrace:           time.Second,
	}
	provider := &domain.ProviderConfig{BaseURL: "https://vixsrc.to", UserAgent: "test-agent"}
	return NewExecutor(config, provider, nil, zap.NewNop()), dir
}

func TestExecutor_Success(t *testing.T) {
	scripts := t.TempDir()
	engine := writeScript(t, scripts, "yt-dlp", fakeEngineArgs+`
echo "[hlsnative] Downloading m3u8 manifest"
echo "download:PROGRESS: 25.0%"
echo "download:PROGRESS: 75.0%"
: > "$out"
`)
	e, dir := newTestExecutor(t, engine)
	dest := filepath.Join(dir, "out", "Fight.Club.1999.mp4")
	sink := &recordingSink{}

	err := e.Run(context.Background(), domain.DownloadRequest{
		Key:         "Fight.Club.1999.mp4",
		ManifestURL: "https://vixsrc.to/playlist/1?h=1&lang=en",
		Destination: dest,
		Quality:     "1080",
		Lang:        "en",
	}, sink)
	require.NoError(t, err)

	assert.FileExists(t, dest)
	assert.Equal(t, []float64{25, 75, 100}, sink.percents)

	logs, err := os.ReadFile(filepath.Join(dir, "logs", "download-"+time.Now().Format("20060102")+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(logs), "=== [")
	assert.Contains(t, string(logs), "Download: Fight.Club.1999.mp4")
	assert.Contains(t, string(logs), "SUCCESS")
}

func TestExecutor_AlreadyExistsFailsBeforeStart(t *testing.T) {
	scripts := t.TempDir()
	marker := filepath.Join(scripts, "started")
	engine := writeScript(t, scripts, "yt-dlp", ": > "+marker+"\n")
	e, dir := newTestExecutor(t, engine)

	dest := filepath.Join(dir, "existing.mp4")
	require.NoError(t, os.WriteFile(dest, []byte("data"), 0644))

	err := e.Run(context.Background(), domain.DownloadRequest{Key: "existing.mp4", Destination: dest, Quality: "best"}, nil)

	var dlErr *domain.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, domain.DownloadAlreadyExists, dlErr.Kind)
	assert.Equal(t, dest, dlErr.Path)
	assert.NoFileExists(t, marker, "engine must not start")
}

func TestExecutor_OverwriteRunsEngine(t *testing.T) {
	scripts := t.TempDir()
	engine := writeScript(t, scripts, "yt-dlp", fakeEngineArgs+`echo "PROGRESS: 100%"
echo new > "$out"
`)
	e, dir := newTestExecutor(t, engine)
	dest := filepath.Join(dir, "existing.mp4")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	err := e.Run(context.Background(), domain.DownloadRequest{Key: "k", Destination: dest, Quality: "best", Overwrite: true}, nil)
	require.NoError(t, err)

	data, _ := os.ReadFile(dest)
	assert.Equal(t, "new\n", string(data))
}

func TestExecutor_FailureReportsLastDiagnostic(t *testing.T) {
	scripts := t.TempDir()
	engine := writeScript(t, scripts, "yt-dlp", `echo "download:PROGRESS: 5.0%"
echo "ERROR: unable to download video data: HTTP Error 403: Forbidden" >&2
exit 1
`)
	e, dir := newTestExecutor(t, engine)

	err := e.Run(context.Background(), domain.DownloadRequest{Key: "k", Destination: filepath.Join(dir, "a.mp4"), Quality: "best"}, nil)

	var dlErr *domain.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, domain.DownloadExecutionFailed, dlErr.Kind)
	assert.Equal(t, "ERROR: unable to download video data: HTTP Error 403: Forbidden", dlErr.Reason)
	assert.ErrorIs(t, err, domain.ErrManifestExpired)
}

func TestExecutor_GenericFailureIsNotExpired(t *testing.T) {
	scripts := t.TempDir()
	engine := writeScript(t, scripts, "yt-dlp", `echo "ERROR: Unsupported URL"
exit 2
`)
	e, dir := newTestExecutor(t, engine)

	err := e.Run(context.Background(), domain.DownloadRequest{Key: "k", Destination: filepath.Join(dir, "a.mp4"), Quality: "best"}, nil)

	var dlErr *domain.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, domain.DownloadExecutionFailed, dlErr.Kind)
	assert.False(t, errors.Is(err, domain.ErrManifestExpired))
}

func TestExecutor_NoOutputIsNoProgress(t *testing.T) {
	scripts := t.TempDir()
	engine := writeScript(t, scripts, "yt-dlp", "exec sleep 10\n")
	e, dir := newTestExecutor(t, engine)
	e.config.StartupGrace = 200 * time.Millisecond
	e.config.StopGrace = 500 * time.Millisecond

	start := time.Now()
	err := e.Run(context.Background(), domain.DownloadRequest{Key: "k", Destination: filepath.Join(dir, "a.mp4"), Quality: "best"}, nil)

	var dlErr *domain.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, domain.DownloadNoProgress, dlErr.Kind)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecutor_CancelTerminatesEngine(t *testing.T) {
	scripts := t.TempDir()
	engine := writeScript(t, scripts, "yt-dlp", "echo started\nexec sleep 10\n")
	e, dir := newTestExecutor(t, engine)
	e.config.StopGrace = 500 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	err := e.Run(ctx, domain.DownloadRequest{Key: "k", Destination: filepath.Join(dir, "a.mp4"), Quality: "best"}, nil)

	var dlErr *domain.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, domain.DownloadExecutionFailed, dlErr.Kind)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecutor_KillsEngineIgnoringInterrupt(t *testing.T) {
	scripts := t.TempDir()
	engine := writeScript(t, scripts, "yt-dlp", "trap '' INT\nexec sleep 30\n")
	e, dir := newTestExecutor(t, engine)
	e.config.StartupGrace = 200 * time.Millisecond
	e.config.StopGrace = 0

	start := time.Now()
	err := e.Run(context.Background(), domain.DownloadRequest{Key: "k", Destination: filepath.Join(dir, "a.mp4"), Quality: "best"}, nil)

	var dlErr *domain.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, domain.DownloadNoProgress, dlErr.Kind)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecutor_MissingBinary(t *testing.T) {
	e, dir := newTestExecutor(t, filepath.Join(t.TempDir(), "does-not-exist"))

	err := e.Run(context.Background(), domain.DownloadRequest{Key: "k", Destination: filepath.Join(dir, "a.mp4"), Quality: "best"}, nil)

	var dlErr *domain.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, domain.DownloadExecutionFailed, dlErr.Kind)
	assert.Contains(t, dlErr.Reason, "failed to start")
}

func TestExecutor_EngineSelection(t *testing.T) {
	e, _ := newTestExecutor(t, "yt-dlp")
	e.config.Engine = domain.EngineAuto

	e.lookPath = func(name string) (string, error) {
		if name == "ffmpeg" {
			return "/usr/bin/ffmpeg", nil
		}
		return "", errors.New("not found")
	}
	engine, binary, err := e.Engine()
	require.NoError(t, err)
	assert.Equal(t, domain.EngineFFmpeg, engine)
	assert.Equal(t, "/usr/bin/ffmpeg", binary)

	e.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	engine, _, err = e.Engine()
	require.NoError(t, err)
	assert.Equal(t, domain.EngineYTDLP, engine)

	e.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	_, _, err = e.Engine()
	assert.Error(t, err)

	e.config.Engine = "aria2"
	_, _, err = e.Engine()
	assert.Error(t, err)
}

func TestExecutor_YTDLPArgs(t *testing.T) {
	e, _ := newTestExecutor(t, "yt-dlp")

	args := e.YTDLPArgs(domain.DownloadRequest{
		ManifestURL: "https://vixsrc.to/playlist/1",
		Destination: "/tmp/out.mp4",
		Quality:     "720",
		Lang:        "it",
	})
	line := strings.Join(args, " ")

	assert.Contains(t, line, "-N 5")
	assert.Contains(t, line, "-S res:720")
	assert.Contains(t, line, "--merge-output-format mp4")
	assert.Contains(t, line, "--referer https://vixsrc.to/")
	assert.Contains(t, line, "-o /tmp/out.mp4")
	assert.Contains(t, line, "--progress-template "+progressTemplate)
	assert.Contains(t, line, "--no-overwrites")
	assert.Equal(t, "https://vixsrc.to/playlist/1", args[len(args)-1])
}

func TestExecutor_FFmpegArgs(t *testing.T) {
	e, _ := newTestExecutor(t, "yt-dlp")

	args := e.FFmpegArgs(domain.DownloadRequest{ManifestURL: "https://m", Destination: "/tmp/o.mp4", Overwrite: true})

	assert.Equal(t, "-y", args[len(args)-2])
	assert.Equal(t, "/tmp/o.mp4", args[len(args)-1])
	assert.Contains(t, args, "Referer: https://vixsrc.to/\r\n")
}

func TestFormatSelector(t *testing.T) {
	tests := []struct {
		quality, lang, expected string
	}{
		{"best", "en", "bestvideo+bestaudio[language=en]/bestvideo+bestaudio/best"},
		{"best", "", "bestvideo+bestaudio/best"},
		{"worst", "", "worstvideo+worstaudio/worst"},
		{"720", "it", "bestvideo[height<=720]+bestaudio[language=it]/bestvideo[height<=720]+bestaudio/best[height<=720]/bestvideo+bestaudio/best"},
		{"1080p", "", "bestvideo[height<=1080]+bestaudio/best[height<=1080]/bestvideo+bestaudio/best"},
	}

	for _, tt := range tests {
		t.Run(tt.quality+"-"+tt.lang, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatSelector(tt.quality, tt.lang))
		})
	}
}

func TestValidQuality(t *testing.T) {
	assert.True(t, ValidQuality("best"))
	assert.True(t, ValidQuality("WORST"))
	assert.True(t, ValidQuality("1080"))
	assert.True(t, ValidQuality("720p"))
	assert.False(t, ValidQuality("0"))
	assert.False(t, ValidQuality("hd"))
}
