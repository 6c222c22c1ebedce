package infrastructure

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/vixsrc-go/internal/domain"
	"github.com/yourusername/vixsrc-go/pkg/logger"
	"go.uber.org/zap"
)

var expiredSignalRe = regexp.MustCompile(`(?i)HTTP Error 40[13]|HTTP Error 410|403 Forbidden|expired`)

const progressTemplate = "download:PROGRESS:%(progress._percent_str)s"

// defaultStopGrace bounds how long an interrupted engine may take to exit
// before it is killed
const defaultStopGrace = 2 * time.Second

// Executor implements DownloadExecutor on top of yt-dlp or ffmpeg
type Executor struct {
	config      *domain.DownloadConfig
	provider    *domain.ProviderConfig
	eventLogger *logger.MultiLogger // For structured events only (LogAppError)
	logger      *zap.Logger
	lookPath    func(string) (string, error)
	logMu       sync.Mutex
}

// NewExecutor creates a new executor
func NewExecutor(config *domain.DownloadConfig, provider *domain.ProviderConfig, eventLogger *logger.MultiLogger, log *zap.Logger) *Executor {
	return &Executor{
		config:      config,
		provider:    provider,
		eventLogger: eventLogger,
		logger:      log,
		lookPath:    exec.LookPath,
	}
}

func (e *Executor) stopGrace() time.Duration {
	if e.config.StopGrace > 0 {
		return e.config.StopGrace
	}
	return defaultStopGrace
}

// Engine resolves which engine and binary will be used
func (e *Executor) Engine() (string, string, error) {
	switch e.config.Engine {
	case domain.EngineYTDLP:
		return domain.EngineYTDLP, e.config.YTDLPBinary, nil
	case domain.EngineFFmpeg:
		return domain.EngineFFmpeg, e.config.FFmpegBinary, nil
	case domain.EngineAuto, "":
		if path, err := e.lookPath(e.config.YTDLPBinary); err == nil {
			return domain.EngineYTDLP, path, nil
		}
		if path, err := e.lookPath(e.config.FFmpegBinary); err == nil {
			return domain.EngineFFmpeg, path, nil
		}
		return "", "", fmt.Errorf("no download engine found: install %s or %s", e.config.YTDLPBinary, e.config.FFmpegBinary)
	default:
		return "", "", fmt.Errorf("unknown download engine: %s", e.config.Engine)
	}
}

// Run downloads req.ManifestURL into req.Destination
func (e *Executor) Run(ctx context.Context, req domain.DownloadRequest, sink domain.ProgressSink) error {
	if sink == nil {
		sink = domain.NopProgressSink{}
	}

	if !req.Overwrite && fileExists(req.Destination) {
		return &domain.DownloadError{Kind: domain.DownloadAlreadyExists, Path: req.Destination}
	}

	if err := os.MkdirAll(filepath.Dir(req.Destination), 0755); err != nil {
		return &domain.DownloadError{
			Kind:   domain.DownloadExecutionFailed,
			Path:   req.Destination,
			Reason: "failed to create output directory",
			Err:    err,
		}
	}

	engine, binary, err := e.Engine()
	if err != nil {
		return &domain.DownloadError{Kind: domain.DownloadExecutionFailed, Path: req.Destination, Reason: err.Error(), Err: err}
	}

	var args []string
	if engine == domain.EngineFFmpeg {
		args = e.FFmpegArgs(req)
	} else {
		args = e.YTDLPArgs(req)
	}

	processLog := e.openLogFile()
	defer processLog.Close()
	e.writeLogHeader(processLog, req.Key, ShellEscapeCommand(binary, args...))

	e.logger.Debug("Starting download engine",
		zap.String("key", req.Key),
		zap.String("engine", engine),
		zap.String("destination", req.Destination))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = e.stopGrace()

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		e.writeLogFooter(processLog, false, fmt.Sprintf("failed to start %s: %v", engine, err))
		return &domain.DownloadError{
			Kind:   domain.DownloadExecutionFailed,
			Path:   req.Destination,
			Reason: fmt.Sprintf("failed to start %s: %v", engine, err),
			Err:    err,
		}
	}

	waitCh := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitCh <- err
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		// keep the engine from blocking on a full pipe after an oversized line
		io.Copy(io.Discard, pr)
	}()

	var graceC <-chan time.Time
	if e.config.StartupGrace > 0 {
		grace := time.NewTimer(e.config.StartupGrace)
		defer grace.Stop()
		graceC = grace.C
	}

	parser := NewProgressParser()
	sawOutput, stalled := false, false

loop:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			sawOutput = true
			e.writeLogLine(processLog, req.Key, line)
			if pct, advanced := parser.Feed(line); advanced {
				sink.Percent(req.Key, pct)
			}
		case <-graceC:
			graceC = nil
			if !sawOutput {
				stalled = true
				cancel()
			}
		}
	}

	waitErr := <-waitCh

	switch {
	case stalled:
		reason := fmt.Sprintf("no output from %s within %s", engine, e.config.StartupGrace)
		e.writeLogFooter(processLog, false, reason)
		return &domain.DownloadError{Kind: domain.DownloadNoProgress, Path: req.Destination, Reason: reason}

	case waitErr == nil:
		if !fileExists(req.Destination) {
			reason := fmt.Sprintf("%s exited without writing %s", engine, req.Destination)
			e.writeLogFooter(processLog, false, reason)
			return &domain.DownloadError{Kind: domain.DownloadExecutionFailed, Path: req.Destination, Reason: reason}
		}
		if parser.Percent() < 100 {
			sink.Percent(req.Key, 100)
		}
		e.writeLogFooter(processLog, true, fmt.Sprintf("Downloaded: %s", req.Destination))
		return nil

	case ctx.Err() != nil:
		e.writeLogFooter(processLog, false, "cancelled")
		return &domain.DownloadError{Kind: domain.DownloadExecutionFailed, Path: req.Destination, Reason: "cancelled", Err: ctx.Err()}

	default:
		reason := parser.LastDiagnostic()
		if reason == "" {
			reason = fmt.Sprintf("%s failed: %v", engine, waitErr)
		}
		cause := waitErr
		if expiredSignalRe.MatchString(reason) {
			cause = fmt.Errorf("%w: %v", domain.ErrManifestExpired, waitErr)
		}
		e.writeLogFooter(processLog, false, reason)
		if e.eventLogger != nil {
			e.eventLogger.LogAppError("Download engine failed",
				zap.String("key", req.Key),
				zap.String("engine", engine),
				zap.String("reason", reason),
				zap.Error(waitErr))
		}
		return &domain.DownloadError{Kind: domain.DownloadExecutionFailed, Path: req.Destination, Reason: reason, Err: cause}
	}
}

// YTDLPArgs builds the yt-dlp command line for a request
func (e *Executor) YTDLPArgs(req domain.DownloadRequest) []string {
	concurrency := e.config.FragmentConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	args := []string{
		"-N", strconv.Itoa(concurrency),
		"-f", FormatSelector(req.Quality, req.Lang),
	}
	if height, ok := TargetHeight(req.Quality); ok {
		args = append(args, "-S", "res:"+strconv.Itoa(height))
	}

	args = append(args,
		"--merge-output-format", containerFormat(req.Destination),
		"--referer", e.referer(),
		"--add-header", "Accept: */*",
		"--user-agent", e.provider.UserAgent,
		"-o", req.Destination,
		"--newline",
		"--no-warnings",
		"--progress-template", progressTemplate,
	)
	if req.Overwrite {
		args = append(args, "--force-overwrites")
	} else {
		args = append(args, "--no-overwrites")
	}

	return append(args, req.ManifestURL)
}

// FFmpegArgs builds the ffmpeg command line for a request. Quality is advisory
// for ffmpeg: the master playlist's default rendition is copied as is.
func (e *Executor) FFmpegArgs(req domain.DownloadRequest) []string {
	overwrite := "-n"
	if req.Overwrite {
		overwrite = "-y"
	}

	return []string{
		"-hide_banner",
		"-nostdin",
		"-user_agent", e.provider.UserAgent,
		"-headers", "Referer: " + e.referer() + "\r\n",
		"-i", req.ManifestURL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		overwrite,
		req.Destination,
	}
}

// FormatSelector returns the yt-dlp format expression for a quality and language
func FormatSelector(quality, lang string) string {
	audio := "bestaudio"
	if lang != "" {
		audio = fmt.Sprintf("bestaudio[language=%s]", lang)
	}

	if height, ok := TargetHeight(quality); ok {
		video := fmt.Sprintf("bestvideo[height<=%d]", height)
		parts := []string{}
		if lang != "" {
			parts = append(parts, video+"+"+audio)
		}
		parts = append(parts,
			video+"+bestaudio",
			fmt.Sprintf("best[height<=%d]", height),
			"bestvideo+bestaudio",
			"best",
		)
		return strings.Join(parts, "/")
	}

	if strings.EqualFold(quality, domain.QualityWorst) {
		if lang != "" {
			return fmt.Sprintf("worstvideo+worstaudio[language=%s]/worstvideo+worstaudio/worst", lang)
		}
		return "worstvideo+worstaudio/worst"
	}

	if lang != "" {
		return "bestvideo+" + audio + "/bestvideo+bestaudio/best"
	}
	return "bestvideo+bestaudio/best"
}

// TargetHeight parses a numeric quality such as "720" or "1080p"
func TargetHeight(quality string) (int, bool) {
	q := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(quality)), "p")
	height, err := strconv.Atoi(q)
	if err != nil || height <= 0 {
		return 0, false
	}
	return height, true
}

// ValidQuality reports whether a quality string is understood
func ValidQuality(quality string) bool {
	if strings.EqualFold(quality, domain.QualityBest) || strings.EqualFold(quality, domain.QualityWorst) {
		return true
	}
	_, ok := TargetHeight(quality)
	return ok
}

func (e *Executor) referer() string {
	return strings.TrimRight(e.provider.BaseURL, "/") + "/"
}

func containerFormat(dest string) string {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(dest), ".")); ext {
	case "mp4", "mkv", "webm", "mov":
		return ext
	default:
		return "mp4"
	}
}

// openLogFile opens the engine output log for today.
// A nil file is returned when logging is not configured or fails.
func (e *Executor) openLogFile() *os.File {
	if e.config.LogsDir == "" {
		return nil
	}
	if err := os.MkdirAll(e.config.LogsDir, 0755); err != nil {
		e.logger.Warn("Failed to create logs directory", zap.Error(err))
		return nil
	}

	dateStr := time.Now().Format("20060102")
	path := filepath.Join(e.config.LogsDir, string(logger.CategoryDownload)+"-"+dateStr+".log")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		e.logger.Warn("Failed to open download log", zap.String("path", path), zap.Error(err))
		return nil
	}
	return file
}

// writeLogHeader writes the download start marker
func (e *Executor) writeLogHeader(file *os.File, key, cmdLine string) {
	if file == nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	e.logMu.Lock()
	defer e.logMu.Unlock()
	file.WriteString(fmt.Sprintf("\n=== [%s] Download: %s ===\n$ %s\n", timestamp, key, cmdLine))
}

func (e *Executor) writeLogLine(file *os.File, key, line string) {
	if file == nil {
		return
	}
	e.logMu.Lock()
	defer e.logMu.Unlock()
	file.WriteString("[" + key + "] " + line + "\n")
}

// writeLogFooter writes the download end marker
func (e *Executor) writeLogFooter(file *os.File, success bool, message string) {
	if file == nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	e.logMu.Lock()
	defer e.logMu.Unlock()
	file.WriteString(fmt.Sprintf("[%s] %s: %s\n=== END ===\n\n", timestamp, status, message))
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
