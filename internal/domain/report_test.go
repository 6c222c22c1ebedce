package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terminalTask(t *testing.T, id int, ok bool) *DownloadTask {
	t.Helper()
	task := NewDownloadTask(NewMovieRef(id), QualityBest, "en")
	require.NoError(t, task.MarkExtracting())
	if !ok {
		require.NoError(t, task.MarkFailed(errors.New("failed")))
		return task
	}
	require.NoError(t, task.MarkDownloading(nil))
	require.NoError(t, task.MarkSucceeded())
	return task
}

func TestBatchReport_CountsAndOrder(t *testing.T) {
	tasks := []*DownloadTask{
		terminalTask(t, 1, true),
		terminalTask(t, 2, false),
		terminalTask(t, 3, true),
		terminalTask(t, 4, false),
	}
	report := NewBatchReport("batch-1", tasks)

	// Completion order differs from input order
	for _, i := range []int{3, 0, 2, 1} {
		require.NoError(t, report.Record(tasks[i]))
	}
	require.NoError(t, report.Finalize())

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, 1, report.Failures[0].Position)
	assert.Equal(t, 3, report.Failures[1].Position)
	assert.Equal(t, "Movie 2", report.Failures[0].Label)
	assert.Equal(t, 1, report.ExitCode())
}

func TestBatchReport_RecordTwiceIsNoop(t *testing.T) {
	task := terminalTask(t, 1, true)
	report := NewBatchReport("b", []*DownloadTask{task})

	require.NoError(t, report.Record(task))
	require.NoError(t, report.Record(task))
	require.NoError(t, report.Finalize())

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.ExitCode())
}

func TestBatchReport_RejectsNonTerminal(t *testing.T) {
	task := NewDownloadTask(NewMovieRef(1), QualityBest, "en")
	report := NewBatchReport("b", []*DownloadTask{task})

	assert.Error(t, report.Record(task))
	assert.Error(t, report.Finalize())
}

func TestBatchReport_EmptyBatchFails(t *testing.T) {
	report := NewBatchReport("b", nil)
	require.NoError(t, report.Finalize())
	assert.Equal(t, 1, report.ExitCode())
}

func TestBatchRecord_Complete(t *testing.T) {
	tasks := []*DownloadTask{terminalTask(t, 1, true), terminalTask(t, 2, false)}
	report := NewBatchReport("b", tasks)
	for _, task := range tasks {
		require.NoError(t, report.Record(task))
	}
	require.NoError(t, report.Finalize())

	record := NewBatchRecord("cli", 2)
	assert.True(t, record.Running)

	record.Complete(report)
	assert.False(t, record.Running)
	assert.Equal(t, 1, record.Succeeded)
	assert.Equal(t, 1, record.Failed)
	assert.NotNil(t, record.FinishedAt)
}
