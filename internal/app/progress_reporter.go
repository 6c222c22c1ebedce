package app

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"github.com/yourusername/vixsrc-go/internal/domain"
	"go.uber.org/zap"
)

// EventKind identifies a progress event
type EventKind string

const (
	EventQueued   EventKind = "queued"
	EventStarted  EventKind = "started"
	EventPercent  EventKind = "percent"
	EventFinished EventKind = "finished"
)

// ProgressEvent is one update received by the reporter
type ProgressEvent struct {
	Kind    EventKind
	Key     string
	Percent float64
	OK      bool
}

// TaskProgress is the reporter's view of one task
type TaskProgress struct {
	Key        string
	Started    bool
	Finished   bool
	OK         bool
	Percent    float64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Elapsed returns how long the task has been running
func (p TaskProgress) Elapsed(now time.Time) time.Duration {
	switch {
	case !p.Started:
		return 0
	case p.Finished:
		return p.FinishedAt.Sub(p.StartedAt)
	default:
		return now.Sub(p.StartedAt)
	}
}

// Renderer draws progress. Calls are serialized by the reporter.
type Renderer interface {
	Render(event ProgressEvent, snapshot []TaskProgress)
	Flush(snapshot []TaskProgress)
}

// ProgressReporter implements domain.ProgressSink. Its mutex is the single
// serialization point for every concurrent task.
type ProgressReporter struct {
	mu       sync.Mutex
	order    []string
	tasks    map[string]*TaskProgress
	renderer Renderer
	now      func() time.Time
}

var _ domain.ProgressSink = (*ProgressReporter)(nil)

// NewProgressReporter creates a reporter drawing through renderer
func NewProgressReporter(renderer Renderer) *ProgressReporter {
	return &ProgressReporter{
		tasks:    make(map[string]*TaskProgress),
		renderer: renderer,
		now:      time.Now,
	}
}

// Queued registers a task in display order
func (r *ProgressReporter) Queued(key string) {
	r.apply(ProgressEvent{Kind: EventQueued, Key: key})
}

// Started marks a task as running
func (r *ProgressReporter) Started(key string) {
	r.apply(ProgressEvent{Kind: EventStarted, Key: key})
}

// Percent records download progress
func (r *ProgressReporter) Percent(key string, percent float64) {
	r.apply(ProgressEvent{Kind: EventPercent, Key: key, Percent: percent})
}

// Finished marks a task as done
func (r *ProgressReporter) Finished(key string, ok bool) {
	r.apply(ProgressEvent{Kind: EventFinished, Key: key, OK: ok})
}

// Close draws the final state
func (r *ProgressReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderer.Flush(r.snapshot())
}

// Snapshot returns a copy of every task's progress in display order
func (r *ProgressReporter) Snapshot() []TaskProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *ProgressReporter) apply(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[event.Key]
	if !ok {
		task = &TaskProgress{Key: event.Key}
		r.tasks[event.Key] = task
		r.order = append(r.order, event.Key)
	}

	switch event.Kind {
	case EventStarted:
		task.Started = true
		task.StartedAt = r.now()
	case EventPercent:
		if task.Finished || event.Percent <= task.Percent {
			return
		}
		task.Percent = event.Percent
	case EventFinished:
		if !task.Started {
			task.Started = true
			task.StartedAt = r.now()
		}
		task.Finished = true
		task.OK = event.OK
		task.FinishedAt = r.now()
		if event.OK {
			task.Percent = 100
		}
	}

	r.renderer.Render(event, r.snapshot())
}

func (r *ProgressReporter) snapshot() []TaskProgress {
	out := make([]TaskProgress, len(r.order))
	for i, key := range r.order {
		out[i] = *r.tasks[key]
	}
	return out
}

// IsInteractive decides between the terminal and the log renderer
func IsInteractive(mode string, out *os.File) bool {
	switch mode {
	case domain.ProgressInteractive:
		return true
	case domain.ProgressLog:
		return false
	default:
		fd := out.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
}

// TerminalRenderer draws one mpb bar per task, in queue order. mpb owns the
// terminal and redraws every bar in place at the refresh interval.
type TerminalRenderer struct {
	progress *mpb.Progress
	now      func() time.Time
	bars     map[string]*mpb.Bar
	lines    map[string]*barLine
	order    []string
	flushed  bool
}

// barLine is the task state read by the bar decorators from mpb's goroutine
type barLine struct {
	mu   sync.Mutex
	task TaskProgress
}

func (l *barLine) set(task TaskProgress) {
	l.mu.Lock()
	l.task = task
	l.mu.Unlock()
}

func (l *barLine) get() TaskProgress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.task
}

const (
	labelWidth = 40
	barWidth   = 24
	// bars count tenths of a percent
	barTotal = 1000
)

// NewTerminalRenderer creates a renderer redrawing at most every interval
func NewTerminalRenderer(out io.Writer, interval time.Duration) *TerminalRenderer {
	return &TerminalRenderer{
		progress: mpb.New(
			mpb.WithOutput(out),
			mpb.WithWidth(barWidth),
			mpb.WithRefreshRate(interval),
			mpb.WithAutoRefresh(),
		),
		now:   time.Now,
		bars:  make(map[string]*mpb.Bar),
		lines: make(map[string]*barLine),
	}
}

// Render moves the bar of the event's task
func (t *TerminalRenderer) Render(event ProgressEvent, snapshot []TaskProgress) {
	if t.flushed {
		return
	}
	t.sync(snapshot)

	bar := t.bars[event.Key]
	switch event.Kind {
	case EventPercent:
		bar.SetCurrent(int64(event.Percent * barTotal / 100))
	case EventFinished:
		if event.OK {
			bar.SetCurrent(barTotal)
			bar.SetTotal(-1, true)
		} else {
			bar.Abort(false)
		}
	}
}

// Flush stops every unfinished bar and waits for the final frame
func (t *TerminalRenderer) Flush(snapshot []TaskProgress) {
	if t.flushed {
		return
	}
	t.flushed = true
	t.sync(snapshot)

	for _, key := range t.order {
		if bar := t.bars[key]; !bar.Completed() && !bar.Aborted() {
			bar.Abort(false)
		}
	}
	t.progress.Wait()
}

// sync copies the snapshot into the bar lines, adding bars for new tasks
func (t *TerminalRenderer) sync(snapshot []TaskProgress) {
	for _, task := range snapshot {
		line, ok := t.lines[task.Key]
		if !ok {
			line = &barLine{}
			t.lines[task.Key] = line
			t.bars[task.Key] = t.addBar(task.Key, line)
			t.order = append(t.order, task.Key)
		}
		line.set(task)
	}
}

func (t *TerminalRenderer) addBar(key string, line *barLine) *mpb.Bar {
	return t.progress.New(barTotal,
		mpb.BarStyle().Lbound(" ").Filler("█").Tip("█").Padding("░").Rbound(" "),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string { return statusIcon(line.get()) }),
			decor.Name(" "+formatLabel(key)),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				task := line.get()
				return fmt.Sprintf("%5.1f%% %s", task.Percent, formatElapsed(task.Elapsed(t.now())))
			}),
		),
	)
}

func statusIcon(task TaskProgress) string {
	switch {
	case task.Finished && task.OK:
		return "✓"
	case task.Finished:
		return "✗"
	case task.Started:
		return "↓"
	default:
		return " "
	}
}

// formatLabel pads or truncates a task key to the label column
func formatLabel(key string) string {
	if r := []rune(key); len(r) > labelWidth {
		key = string(r[:labelWidth-1]) + "…"
	}
	return fmt.Sprintf("%-*s", labelWidth, key)
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// LogRenderer writes progress as structured log lines
type LogRenderer struct {
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
	lastLog  map[string]time.Time
}

// NewLogRenderer creates a renderer logging percent updates at most every interval per task
func NewLogRenderer(logger *zap.Logger, interval time.Duration) *LogRenderer {
	return &LogRenderer{
		logger:   logger,
		interval: interval,
		now:      time.Now,
		lastLog:  make(map[string]time.Time),
	}
}

// Render logs state changes and coalesced percent updates
func (l *LogRenderer) Render(event ProgressEvent, snapshot []TaskProgress) {
	switch event.Kind {
	case EventQueued:
		l.logger.Debug("Task queued", zap.String("task", event.Key))
	case EventStarted:
		l.lastLog[event.Key] = l.now()
		l.logger.Info("Task started", zap.String("task", event.Key))
	case EventPercent:
		now := l.now()
		if now.Sub(l.lastLog[event.Key]) < l.interval {
			return
		}
		l.lastLog[event.Key] = now
		l.logger.Info("Task progress",
			zap.String("task", event.Key),
			zap.String("percent", fmt.Sprintf("%.1f", event.Percent)))
	case EventFinished:
		var elapsed time.Duration
		for _, task := range snapshot {
			if task.Key == event.Key {
				elapsed = task.Elapsed(l.now())
			}
		}
		if event.OK {
			l.logger.Info("Task finished", zap.String("task", event.Key), zap.Duration("elapsed", elapsed))
		} else {
			l.logger.Warn("Task failed", zap.String("task", event.Key), zap.Duration("elapsed", elapsed))
		}
	}
}

// Flush is a no-op: every state change was already logged
func (l *LogRenderer) Flush([]TaskProgress) {}
