package git

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutools/classrepo/pkg/models"
)

// attemptCounter is a TaskFunc that fails each task a configured number of
// times before succeeding, recording every attempt.
type attemptCounter struct {
	mu       sync.Mutex
	failures map[string]int
	attempts map[string]int
}

func newAttemptCounter(failures map[string]int) *attemptCounter {
	return &attemptCounter{
		failures: failures,
		attempts: make(map[string]int),
	}
}

func (c *attemptCounter) op(_ context.Context, task models.TransferTask) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[task.RepoURL]++
	if c.attempts[task.RepoURL] <= c.failures[task.RepoURL] {
		return fmt.Errorf("simulated failure %d for %s", c.attempts[task.RepoURL], task.RepoURL)
	}
	return nil
}

func makeTasks(urls ...string) []models.TransferTask {
	tasks := make([]models.TransferTask, 0, len(urls))
	for _, url := range urls {
		tasks = append(tasks, models.TransferTask{
			LocalPath: "/tmp/work",
			RepoURL:   url,
			Branch:    "master",
		})
	}
	return tasks
}

func TestRunBatchAllSucceedFirstTry(t *testing.T) {
	counter := newAttemptCounter(nil)
	tasks := makeTasks("https://host/org/a", "https://host/org/b", "https://host/org/c")

	failed, err := RunBatch(context.Background(), tasks, counter.op, 3, 0)

	require.NoError(t, err)
	assert.Empty(t, failed)
	for _, task := range tasks {
		assert.Equal(t, 1, counter.attempts[task.RepoURL])
	}
}

func TestRunBatchRetriesUntilSuccess(t *testing.T) {
	// a succeeds immediately, b needs one retry, c needs two.
	counter := newAttemptCounter(map[string]int{
		"https://host/org/b": 1,
		"https://host/org/c": 2,
	})
	tasks := makeTasks("https://host/org/a", "https://host/org/b", "https://host/org/c")

	failed, err := RunBatch(context.Background(), tasks, counter.op, 3, 0)

	require.NoError(t, err)
	assert.Empty(t, failed)
	// A task that succeeded is never re-submitted in later rounds.
	assert.Equal(t, 1, counter.attempts["https://host/org/a"])
	assert.Equal(t, 2, counter.attempts["https://host/org/b"])
	assert.Equal(t, 3, counter.attempts["https://host/org/c"])
}

func TestRunBatchReportsExhaustedTasks(t *testing.T) {
	counter := newAttemptCounter(map[string]int{
		"https://host/org/bad": 100,
	})
	tasks := makeTasks("https://host/org/good", "https://host/org/bad")

	failed, err := RunBatch(context.Background(), tasks, counter.op, 3, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://host/org/bad"}, failed)
	// The failing task gets exactly tries attempts, no more.
	assert.Equal(t, 3, counter.attempts["https://host/org/bad"])
	assert.Equal(t, 1, counter.attempts["https://host/org/good"])
}

func TestRunBatchSingleTry(t *testing.T) {
	counter := newAttemptCounter(map[string]int{
		"https://host/org/flaky": 1,
	})
	tasks := makeTasks("https://host/org/flaky")

	failed, err := RunBatch(context.Background(), tasks, counter.op, 1, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://host/org/flaky"}, failed)
	assert.Equal(t, 1, counter.attempts["https://host/org/flaky"])
}

func TestRunBatchValidation(t *testing.T) {
	okTasks := makeTasks("https://host/org/a")
	okOp := func(context.Context, models.TransferTask) error { return nil }

	tests := []struct {
		name          string
		tasks         []models.TransferTask
		op            TaskFunc
		tries         int
		maxConcurrent int
	}{
		{name: "zero tries", tasks: okTasks, op: okOp, tries: 0},
		{name: "negative tries", tasks: okTasks, op: okOp, tries: -1},
		{name: "no tasks", tasks: nil, op: okOp, tries: 3},
		{name: "nil op", tasks: okTasks, op: nil, tries: 3},
		{name: "negative concurrency", tasks: okTasks, op: okOp, tries: 3, maxConcurrent: -1},
		{
			name:  "duplicate task identity",
			tasks: makeTasks("https://host/org/a", "https://host/org/a"),
			op:    okOp,
			tries: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failed, err := RunBatch(context.Background(), tt.tasks, tt.op, tt.tries, tt.maxConcurrent)
			var invalidArg models.InvalidArgumentError
			assert.ErrorAs(t, err, &invalidArg)
			assert.Nil(t, failed)
		})
	}
}

func TestRunBatchSameURLDifferentBranchAllowed(t *testing.T) {
	counter := newAttemptCounter(nil)
	tasks := []models.TransferTask{
		{LocalPath: "/tmp/a", RepoURL: "https://host/org/a", Branch: "master"},
		{LocalPath: "/tmp/a", RepoURL: "https://host/org/a", Branch: "feedback"},
	}

	failed, err := RunBatch(context.Background(), tasks, counter.op, 1, 0)

	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Equal(t, 2, counter.attempts["https://host/org/a"])
}

func TestRunBatchRespectsConcurrencyLimit(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	op := func(_ context.Context, _ models.TransferTask) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}

	tasks := makeTasks(
		"https://host/org/a", "https://host/org/b", "https://host/org/c",
		"https://host/org/d", "https://host/org/e", "https://host/org/f",
	)
	failed, err := RunBatch(context.Background(), tasks, op, 1, 2)

	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.LessOrEqual(t, peak, 2)
}

func TestRunBatchCancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	counter := newAttemptCounter(map[string]int{
		"https://host/org/a": 100,
	})
	op := func(ctx context.Context, task models.TransferTask) error {
		cancel()
		return counter.op(ctx, task)
	}

	failed, err := RunBatch(ctx, makeTasks("https://host/org/a"), op, 5, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://host/org/a"}, failed)
	// The first round ran to completion but no retry round started.
	assert.Equal(t, 1, counter.attempts["https://host/org/a"])
}

func TestRunBatchDistinguishesErrorTypes(t *testing.T) {
	// The runner treats every task error the same; this just pins that a
	// typed failure still lands in the failed set with its URL.
	op := func(_ context.Context, task models.TransferTask) error {
		return CloneFailedError{ReturnCode: 128, Stderr: "fatal: not found", URL: task.RepoURL}
	}

	failed, err := RunBatch(context.Background(), makeTasks("https://host/org/missing"), op, 2, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://host/org/missing"}, failed)
}

func TestContainsTask(t *testing.T) {
	tasks := makeTasks("https://host/org/a", "https://host/org/b")
	assert.True(t, containsTask(tasks, models.TransferTask{RepoURL: "https://host/org/a", Branch: "master"}))
	assert.False(t, containsTask(tasks, models.TransferTask{RepoURL: "https://host/org/a", Branch: "feedback"}))
	assert.False(t, containsTask(tasks, models.TransferTask{RepoURL: "https://host/org/c", Branch: "master"}))
}

func TestPushBatchPropagatesValidation(t *testing.T) {
	_, err := PushBatch(context.Background(), nil, 3, 0)
	var invalidArg models.InvalidArgumentError
	assert.ErrorAs(t, err, &invalidArg)
}
