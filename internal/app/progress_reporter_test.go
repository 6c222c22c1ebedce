package app

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeClock advances only when told to
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type countingRenderer struct {
	renders int
	flushes int
	last    []TaskProgress
}

func (r *countingRenderer) Render(_ ProgressEvent, snapshot []TaskProgress) {
	r.renders++
	r.last = snapshot
}

func (r *countingRenderer) Flush(snapshot []TaskProgress) {
	r.flushes++
	r.last = snapshot
}

func TestProgressReporter_Snapshot(t *testing.T) {
	renderer := &countingRenderer{}
	r := NewProgressReporter(renderer)

	r.Queued("a.mp4")
	r.Queued("b.mp4")
	r.Started("b.mp4")
	r.Percent("b.mp4", 40)
	r.Percent("b.mp4", 30)
	r.Started("a.mp4")
	r.Finished("a.mp4", false)

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a.mp4", snap[0].Key)
	assert.True(t, snap[0].Finished)
	assert.False(t, snap[0].OK)
	assert.Equal(t, float64(40), snap[1].Percent)
	assert.False(t, snap[1].Finished)

	// the backwards percent is dropped without rendering
	assert.Equal(t, 6, renderer.renders)

	r.Finished("b.mp4", true)
	r.Close()
	assert.Equal(t, 1, renderer.flushes)
	assert.Equal(t, float64(100), renderer.last[1].Percent)
}

func TestProgressReporter_ConcurrentEvents(t *testing.T) {
	r := NewProgressReporter(&countingRenderer{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			r.Queued(key)
			r.Started(key)
			for p := 1; p <= 100; p++ {
				r.Percent(key, float64(p))
			}
			r.Finished(key, true)
		}(string(rune('a' + i)))
	}
	wg.Wait()

	snap := r.Snapshot()
	require.Len(t, snap, 8)
	for _, task := range snap {
		assert.True(t, task.OK)
		assert.Equal(t, float64(100), task.Percent)
	}
}

func TestTerminalRenderer_OneBarPerTask(t *testing.T) {
	var out bytes.Buffer
	renderer := NewTerminalRenderer(&out, 10*time.Millisecond)
	r := NewProgressReporter(renderer)

	r.Queued("one.mp4")
	r.Queued("two.mp4")
	r.Queued("three.mp4")
	r.Started("one.mp4")
	r.Percent("one.mp4", 50)
	r.Finished("one.mp4", true)
	r.Started("two.mp4")
	r.Finished("two.mp4", false)
	r.Close()

	require.Len(t, renderer.order, 3)
	assert.True(t, renderer.bars["one.mp4"].Completed())
	assert.True(t, renderer.bars["two.mp4"].Aborted())
	// never started, stopped by Close
	assert.True(t, renderer.bars["three.mp4"].Aborted())

	frame := out.String()
	assert.Contains(t, frame, "one.mp4")
	assert.Contains(t, frame, "two.mp4")
	assert.Contains(t, frame, "✓")
	assert.Contains(t, frame, "✗")

	// events after Close are ignored
	r.Percent("three.mp4", 10)
}

func TestStatusIconAndLabel(t *testing.T) {
	assert.Equal(t, " ", statusIcon(TaskProgress{}))
	assert.Equal(t, "↓", statusIcon(TaskProgress{Started: true}))
	assert.Equal(t, "✓", statusIcon(TaskProgress{Started: true, Finished: true, OK: true}))
	assert.Equal(t, "✗", statusIcon(TaskProgress{Finished: true}))

	assert.Equal(t, "Fight.Club.1999.mp4"+strings.Repeat(" ", labelWidth-19), formatLabel("Fight.Club.1999.mp4"))
	assert.Equal(t, strings.Repeat("x", labelWidth-1)+"…", formatLabel(strings.Repeat("x", 60)))

	assert.Equal(t, "01:15", formatElapsed(75*time.Second))
	assert.Equal(t, "00:05", formatElapsed(5*time.Second))
}

func TestTaskProgress_Elapsed(t *testing.T) {
	start := time.Unix(1000, 0)
	task := TaskProgress{Started: true, StartedAt: start}
	assert.Equal(t, 75*time.Second, task.Elapsed(start.Add(75*time.Second)))

	task.Finished, task.FinishedAt = true, start.Add(5*time.Second)
	assert.Equal(t, 5*time.Second, task.Elapsed(start.Add(time.Hour)))

	assert.Zero(t, TaskProgress{}.Elapsed(start))
}

func TestLogRenderer_CoalescesPercent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	renderer := NewLogRenderer(zap.New(core), 5*time.Second)
	renderer.now = clock.Now
	r := NewProgressReporter(renderer)
	r.now = clock.Now

	r.Queued("a.mp4")
	r.Started("a.mp4")
	for p := 1; p <= 10; p++ {
		clock.Advance(time.Second)
		r.Percent("a.mp4", float64(p*10))
	}
	clock.Advance(time.Second)
	r.Finished("a.mp4", true)
	r.Queued("b.mp4")
	r.Finished("b.mp4", false)

	assert.Equal(t, 1, logs.FilterMessage("Task started").Len())
	assert.Equal(t, 2, logs.FilterMessage("Task progress").Len())
	assert.Equal(t, 1, logs.FilterMessage("Task finished").Len())

	failed := logs.FilterMessage("Task failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, "b.mp4", failed[0].ContextMap()["task"])
}
