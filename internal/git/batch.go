package git

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/edutools/classrepo/internal/logging"
	"github.com/edutools/classrepo/pkg/models"
)

// TaskFunc performs one transfer attempt for one task.
type TaskFunc func(ctx context.Context, task models.TransferTask) error

// RunBatch executes independent transfer tasks with bounded parallelism and
// per-task retry. All pending tasks of a round are launched concurrently
// (maxConcurrent caps the number of simultaneous git processes; zero means
// unbounded) and the round runs to completion before the next one starts.
// A task that fails is re-submitted in the next round; after tries rounds
// the remote URLs of the tasks that never succeeded are returned. There is
// no delay between rounds. Only the final per-task outcome matters: a task
// that succeeds on a later try is not reported as failed.
//
// Tasks must have pairwise distinct (RepoURL, Branch) identities; concurrent
// transfers against the same remote ref are undefined, so duplicates are a
// precondition violation. A cancelled context stops further rounds from
// starting, but every task of an already-started round gets its attempt.
func RunBatch(ctx context.Context, tasks []models.TransferTask, op TaskFunc, tries, maxConcurrent int) ([]string, error) {
	if tries < 1 {
		return nil, models.InvalidArgumentError{Msg: fmt.Sprintf("tries must be larger than 0, got %d", tries)}
	}
	if len(tasks) == 0 {
		return nil, models.InvalidArgumentError{Msg: "tasks must not be empty"}
	}
	if op == nil {
		return nil, models.InvalidArgumentError{Msg: "op must not be nil"}
	}
	if maxConcurrent < 0 {
		return nil, models.InvalidArgumentError{Msg: fmt.Sprintf("maxConcurrent must not be negative, got %d", maxConcurrent)}
	}
	seen := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		id := task.RepoURL + "\x00" + task.Branch
		if seen[id] {
			return nil, models.InvalidArgumentError{Msg: fmt.Sprintf(
				"duplicate task for %s branch %q", logging.MaskURL(task.RepoURL), task.Branch)}
		}
		seen[id] = true
	}

	pending := tasks
	for attempt := 1; attempt <= tries; attempt++ {
		if attempt > 1 {
			logging.Info("retrying failed transfers", "attempt", attempt, "remaining", len(pending))
		}

		failed := runRound(ctx, pending, op, maxConcurrent)

		if attempt > 1 {
			for _, task := range pending {
				if !containsTask(failed, task) {
					logging.Info("transfer succeeded on retry",
						"url", logging.MaskURL(task.RepoURL), "attempt", attempt)
				}
			}
		}

		pending = failed
		if len(pending) == 0 {
			return nil, nil
		}
		if err := ctx.Err(); err != nil {
			break
		}
	}

	failedURLs := make([]string, 0, len(pending))
	for _, task := range pending {
		failedURLs = append(failedURLs, task.RepoURL)
	}
	return failedURLs, nil
}

// runRound attempts every pending task once, concurrently, and returns the
// tasks whose attempt failed. The round always runs to completion; errors
// are collected, never propagated mid-round.
func runRound(ctx context.Context, pending []models.TransferTask, op TaskFunc, maxConcurrent int) []models.TransferTask {
	var (
		mu     sync.Mutex
		failed []models.TransferTask
	)

	g := &errgroup.Group{}
	if maxConcurrent > 0 {
		g.SetLimit(maxConcurrent)
	}

	for _, task := range pending {
		task := task
		g.Go(func() error {
			if err := op(ctx, task); err != nil {
				logging.Warn("transfer failed",
					"url", logging.MaskURL(task.RepoURL),
					"branch", task.Branch,
					"error", err)
				mu.Lock()
				failed = append(failed, task)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	return failed
}

func containsTask(tasks []models.TransferTask, want models.TransferTask) bool {
	for _, task := range tasks {
		if task.RepoURL == want.RepoURL && task.Branch == want.Branch {
			return true
		}
	}
	return false
}

// CloneBatch clones every task's remote, with retries. Each task's LocalPath
// is the working copy git will create; the clone runs in its parent
// directory. Tasks whose local path already holds a git working copy are
// skipped. Returns the remote URLs that still failed after all tries.
func CloneBatch(ctx context.Context, tasks []models.TransferTask, tries, maxConcurrent int) ([]string, error) {
	return RunBatch(ctx, tasks, func(ctx context.Context, task models.TransferTask) error {
		if IsGitRepo(task.LocalPath) {
			logging.Info("repository already cloned, skipping", "path", task.LocalPath)
			return nil
		}
		return Clone(ctx, CloneSpec{
			URL:          task.RepoURL,
			Branch:       task.Branch,
			SingleBranch: true,
			Cwd:          filepath.Dir(task.LocalPath),
		})
	}, tries, maxConcurrent)
}

// PushBatch pushes every task's local repository to its remote branch, with
// retries. Returns the remote URLs that still failed after all tries.
func PushBatch(ctx context.Context, tasks []models.TransferTask, tries, maxConcurrent int) ([]string, error) {
	return RunBatch(ctx, tasks, func(ctx context.Context, task models.TransferTask) error {
		return Push(ctx, PushSpec{
			LocalPath: task.LocalPath,
			RepoURL:   task.RepoURL,
			Branch:    task.Branch,
		})
	}, tries, maxConcurrent)
}
