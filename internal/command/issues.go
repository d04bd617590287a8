package command

import (
	"context"
	"regexp"

	"github.com/edutools/classrepo/internal/platform"
	"github.com/edutools/classrepo/pkg/models"
)

// OpenIssue opens the same issue in every student repository derived from
// the given master repo names.
func (s *Service) OpenIssue(ctx context.Context, issue models.Issue, masterRepoNames, students []string) error {
	if issue.Title == "" {
		return models.InvalidArgumentError{Msg: "issue title must not be empty"}
	}
	if err := validateNonEmpty("master repo names", masterRepoNames); err != nil {
		return err
	}
	if err := validateNonEmpty("students", students); err != nil {
		return err
	}
	if err := validateNoDuplicates("students", students); err != nil {
		return err
	}

	repoNames := platform.GenerateRepoNames(students, masterRepoNames)
	return s.API.OpenIssue(ctx, issue.Title, issue.Body, repoNames)
}

// CloseIssue closes every open issue whose title matches titleRegex in the
// student repositories derived from the given master repo names.
func (s *Service) CloseIssue(ctx context.Context, titleRegex *regexp.Regexp, masterRepoNames, students []string) error {
	if titleRegex == nil {
		return models.InvalidArgumentError{Msg: "title regex must not be empty"}
	}
	if err := validateNonEmpty("master repo names", masterRepoNames); err != nil {
		return err
	}
	if err := validateNonEmpty("students", students); err != nil {
		return err
	}
	if err := validateNoDuplicates("students", students); err != nil {
		return err
	}

	repoNames := platform.GenerateRepoNames(students, masterRepoNames)
	return s.API.CloseIssue(ctx, titleRegex, repoNames)
}

// ListIssues fetches issues in the given state from the student
// repositories derived from the given master repo names, optionally
// filtered by a title regex (nil matches everything).
func (s *Service) ListIssues(ctx context.Context, masterRepoNames, students []string, state models.IssueState, titleRegex *regexp.Regexp) ([]platform.RepoIssues, error) {
	if err := validateNonEmpty("master repo names", masterRepoNames); err != nil {
		return nil, err
	}
	if err := validateNonEmpty("students", students); err != nil {
		return nil, err
	}
	if err := validateNoDuplicates("students", students); err != nil {
		return nil, err
	}

	repoNames := platform.GenerateRepoNames(students, masterRepoNames)
	return s.API.GetIssues(ctx, repoNames, state, titleRegex)
}
