// Package platform defines the capability surface every hosting-platform
// backend implements, together with the shared error taxonomy and the
// repository naming scheme.
//
// Three backends implement API: a GitHub-style one (platform/github), a
// GitLab-style one (platform/gitlab), and an in-memory fake for testing
// (platform/fake). Orchestration code depends only on this package, never on
// a concrete backend.
package platform

import (
	"context"
	"regexp"

	"github.com/edutools/classrepo/pkg/models"
)

// TeamPermission is the access level granted to a team on its repositories.
type TeamPermission string

const (
	// PermissionPush grants read/write access.
	PermissionPush TeamPermission = "push"
	// PermissionPull grants read-only access.
	PermissionPull TeamPermission = "pull"
)

// RepoIssues pairs a repository name with the issues fetched from it.
type RepoIssues struct {
	RepoName string
	Issues   []models.Issue
}

// DefaultReviewIssue is opened in a repository when it is assigned to a
// review team and no explicit issue is supplied.
var DefaultReviewIssue = models.Issue{
	Title: "Peer review",
	Body:  "You have been assigned to peer review this repo.",
}

// API is the fixed capability contract of a hosting platform. All methods
// translate platform failures into the taxonomy of this package (see
// errors.go) and retain no state between calls beyond the connection handle.
type API interface {
	// EnsureTeamsAndMembers reconciles the given teams against platform
	// state: an existing team is reused, a missing one created, and any
	// member not already in their team is added. Members are never
	// removed, and usernames that cannot be resolved to an account are
	// logged and skipped. Idempotent. The returned teams carry their
	// platform identifiers.
	EnsureTeamsAndMembers(ctx context.Context, teams []models.TeamSpec, permission TeamPermission) ([]models.TeamSpec, error)

	// CreateRepos creates each repository and returns their
	// credential-bearing URLs in input order. A repository that already
	// exists is not an error; its URL is fetched and returned all the
	// same. Any non-conflict failure aborts the whole call.
	CreateRepos(ctx context.Context, repos []models.RepoSpec) ([]string, error)

	// GetRepoURLs computes credential-bearing repository URLs without
	// checking existence, avoiding per-repo round-trips. orgName
	// overrides the target organization when non-empty. If teams are
	// given, one URL per (team × master repo name) combination is
	// computed using the shared naming scheme; otherwise the names are
	// used as-is.
	GetRepoURLs(ctx context.Context, masterRepoNames []string, orgName string, teams []models.TeamSpec) ([]string, error)

	// GetIssues fetches issues in the given state from each repository,
	// keeping only those whose title matches titleRegex (nil matches
	// everything). Repositories that cannot be found are skipped with a
	// warning.
	GetIssues(ctx context.Context, repoNames []string, state models.IssueState, titleRegex *regexp.Regexp) ([]RepoIssues, error)

	// OpenIssue opens the same issue in every given repository.
	// Repositories that cannot be found are skipped with a warning.
	OpenIssue(ctx context.Context, title, body string, repoNames []string) error

	// CloseIssue closes every open issue whose title matches titleRegex
	// in the given repositories. Repositories that cannot be found are
	// skipped with a warning.
	CloseIssue(ctx context.Context, titleRegex *regexp.Regexp, repoNames []string) error

	// AddReposToReviewTeams grants each team access to its assigned
	// repositories and opens the review issue in each, assigned to the
	// team's members. A nil issue opens DefaultReviewIssue.
	AddReposToReviewTeams(ctx context.Context, teamToRepos map[string][]string, issue *models.Issue) error

	// VerifySettings runs the preflight checks: token present, identity
	// resolvable, token scopes sufficient, organization(s) exist, user
	// is an owner of the organization(s). Each step fails fast with a
	// specific diagnostic.
	VerifySettings(ctx context.Context, user, orgName, token, masterOrgName string) error
}
