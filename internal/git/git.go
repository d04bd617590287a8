// Package git wraps the git CLI for bulk clone and push operations.
//
// The primitives in this file run exactly one git process each and report
// the outcome; retry policy lives in the batch runner (see batch.go).
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	"github.com/edutools/classrepo/internal/logging"
	"github.com/edutools/classrepo/pkg/models"
)

// upToDateMarker is what git prints on stderr when a push has nothing to do.
// Such a push is a success: pushing is idempotent with respect to no-ops.
const upToDateMarker = "Everything up-to-date"

// CloneFailedError reports a git clone that exited with a non-zero status.
// Stderr is preserved verbatim for diagnostics.
type CloneFailedError struct {
	ReturnCode int
	Stderr     string
	URL        string
}

func (e CloneFailedError) Error() string {
	return fmt.Sprintf("failed to clone %s: git exited with status %d: %s",
		logging.MaskURL(e.URL), e.ReturnCode, strings.TrimSpace(e.Stderr))
}

// PushFailedError reports a git push that exited with a non-zero status.
// Stderr is preserved verbatim for diagnostics.
type PushFailedError struct {
	ReturnCode int
	Stderr     string
	URL        string
}

func (e PushFailedError) Error() string {
	return fmt.Sprintf("failed to push to %s: git exited with status %d: %s",
		logging.MaskURL(e.URL), e.ReturnCode, strings.TrimSpace(e.Stderr))
}

// CloneSpec describes a single clone operation.
type CloneSpec struct {
	// URL is the credential-bearing HTTPS URL of the remote repository.
	URL string

	// Branch optionally selects the branch to clone. Empty means the
	// remote's default branch.
	Branch string

	// SingleBranch clones only the selected branch when true.
	SingleBranch bool

	// Cwd is the directory the clone runs in; git creates the working
	// copy as a subdirectory of it. Empty means the process working dir.
	Cwd string
}

// PushSpec describes a single push operation: one local repository pushed to
// one explicit remote/branch pair.
type PushSpec struct {
	// LocalPath is the root of the local git repository to push from.
	LocalPath string

	// RepoURL is the credential-bearing HTTPS URL of the remote.
	RepoURL string

	// Branch is the branch to push.
	Branch string
}

// cloneArgs builds the argument vector for a clone, deterministically from
// the spec.
func cloneArgs(spec CloneSpec) []string {
	args := []string{"clone", spec.URL}
	if spec.SingleBranch {
		args = append(args, "--single-branch")
	}
	if spec.Branch != "" {
		args = append(args, "-b", spec.Branch)
	}
	return args
}

// pushArgs builds the argument vector for a push.
func pushArgs(spec PushSpec) []string {
	return []string{"push", spec.RepoURL, spec.Branch}
}

// Clone clones a single repository. It makes exactly one attempt and returns
// a CloneFailedError when the git process exits non-zero.
func Clone(ctx context.Context, spec CloneSpec) error {
	if spec.URL == "" {
		return models.InvalidArgumentError{Msg: "clone url must not be empty"}
	}

	logging.Debug("cloning repository", "url", logging.MaskURL(spec.URL), "branch", spec.Branch)

	rc, stderr, err := run(ctx, spec.Cwd, cloneArgs(spec)...)
	if err != nil {
		return err
	}
	if rc != 0 {
		return CloneFailedError{ReturnCode: rc, Stderr: stderr, URL: spec.URL}
	}
	return nil
}

// Push pushes a single local repository to one remote branch. It makes
// exactly one attempt and returns a PushFailedError when the git process
// exits non-zero, unless stderr reports that everything is already up to
// date, which counts as success.
func Push(ctx context.Context, spec PushSpec) error {
	if spec.LocalPath == "" {
		return models.InvalidArgumentError{Msg: "push local path must not be empty"}
	}
	if spec.RepoURL == "" {
		return models.InvalidArgumentError{Msg: "push repo url must not be empty"}
	}
	if spec.Branch == "" {
		return models.InvalidArgumentError{Msg: "push branch must not be empty"}
	}

	logging.Debug("pushing repository",
		"local_path", spec.LocalPath,
		"url", logging.MaskURL(spec.RepoURL),
		"branch", spec.Branch)

	rc, stderr, err := run(ctx, spec.LocalPath, pushArgs(spec)...)
	if err != nil {
		return err
	}
	if rc != 0 && !isUpToDate(stderr) {
		return PushFailedError{ReturnCode: rc, Stderr: stderr, URL: spec.RepoURL}
	}
	return nil
}

// isUpToDate reports whether git stderr indicates a no-op push.
func isUpToDate(stderr string) bool {
	return strings.Contains(stderr, upToDateMarker)
}

// run executes git with the given arguments in dir, capturing stderr. A
// non-zero exit status is not an error at this level; it is returned as the
// status code for the caller to classify.
func run(ctx context.Context, dir string, args ...string) (returncode int, stderr string, err error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// git binary missing, bad working directory, or context
			// cancellation before exec.
			return 0, "", fmt.Errorf("failed to run git %s: %w", args[0], err)
		}
		return exitErr.ExitCode(), stderrBuf.String(), nil
	}
	return 0, stderrBuf.String(), nil
}

// IsGitRepo reports whether path is the root of a git working copy. Used to
// skip clone targets that already exist locally.
func IsGitRepo(path string) bool {
	_, err := gogit.PlainOpen(path)
	return err == nil
}
