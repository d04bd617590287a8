// Package command implements the course-management workflows: setting up,
// updating and cloning student repositories, bulk issue management, and
// peer-review assignment. Each workflow is a short sequential pipeline over
// the platform API and the concurrent git batch runner, validates all of
// its arguments before touching the network or the filesystem, and holds no
// state across invocations.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/edutools/classrepo/internal/config"
	"github.com/edutools/classrepo/internal/git"
	"github.com/edutools/classrepo/internal/platform"
	"github.com/edutools/classrepo/pkg/models"
)

// GitService is the slice of the git package the workflows need. Tests
// substitute a recording implementation.
type GitService interface {
	// CloneBatch clones every task with retries, returning the remote
	// URLs that still failed after all tries.
	CloneBatch(ctx context.Context, tasks []models.TransferTask, tries, maxConcurrent int) ([]string, error)

	// PushBatch pushes every task with retries, returning the remote
	// URLs that still failed after all tries.
	PushBatch(ctx context.Context, tasks []models.TransferTask, tries, maxConcurrent int) ([]string, error)
}

// execGitService runs real git processes through the git package.
type execGitService struct{}

func (execGitService) CloneBatch(ctx context.Context, tasks []models.TransferTask, tries, maxConcurrent int) ([]string, error) {
	return git.CloneBatch(ctx, tasks, tries, maxConcurrent)
}

func (execGitService) PushBatch(ctx context.Context, tasks []models.TransferTask, tries, maxConcurrent int) ([]string, error) {
	return git.PushBatch(ctx, tasks, tries, maxConcurrent)
}

// Service carries the collaborators and settings shared by all workflows.
type Service struct {
	API         platform.API
	Git         GitService
	User        string
	Token       string
	Tries       int
	Concurrency int
}

// NewService builds a Service around a platform backend using the loaded
// configuration, with real git execution.
func NewService(api platform.API, cfg *config.Config) *Service {
	return &Service{
		API:         api,
		Git:         execGitService{},
		User:        cfg.User,
		Token:       cfg.Token,
		Tries:       cfg.Tries,
		Concurrency: cfg.Concurrency,
	}
}

// validateIdentity checks the identity fields every transfer depends on.
func (s *Service) validateIdentity() error {
	if s.User == "" {
		return models.InvalidArgumentError{Msg: "user must not be empty"}
	}
	if s.Token == "" {
		return models.InvalidArgumentError{Msg: "token must not be empty"}
	}
	if s.Tries < 1 {
		return models.InvalidArgumentError{Msg: fmt.Sprintf("tries must be larger than 0, got %d", s.Tries)}
	}
	return nil
}

// insertAuth embeds the service credentials into a repository URL.
func (s *Service) insertAuth(url string) (string, error) {
	if s.User != "" {
		return git.InsertTokenWithUser(url, s.User, s.Token)
	}
	return git.InsertToken(url, s.Token)
}

// validateNonEmpty rejects an empty list and empty elements.
func validateNonEmpty(name string, values []string) error {
	if len(values) == 0 {
		return models.InvalidArgumentError{Msg: fmt.Sprintf("%s must not be empty", name)}
	}
	for _, value := range values {
		if value == "" {
			return models.InvalidArgumentError{Msg: fmt.Sprintf("%s must not contain empty values", name)}
		}
	}
	return nil
}

// validateNoDuplicates rejects repeated values.
func validateNoDuplicates(name string, values []string) error {
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		if seen[value] {
			return models.InvalidArgumentError{Msg: fmt.Sprintf("%s contains duplicates: %s", name, value)}
		}
		seen[value] = true
	}
	return nil
}

// repoNamesFromURLs derives repository base names, used when reporting
// which remotes failed without leaking credentials embedded in the URLs.
func repoNamesFromURLs(urls []string) []string {
	names := make([]string, len(urls))
	for i, url := range urls {
		names[i] = platform.RepoBaseName(url)
	}
	return names
}

// transferFailure summarizes a partially failed batch into an error naming
// every remote the caller needs to remediate.
func transferFailure(operation string, failedURLs []string) error {
	return fmt.Errorf("failed to %s %d repos: %s",
		operation, len(failedURLs), strings.Join(repoNamesFromURLs(failedURLs), ", "))
}
