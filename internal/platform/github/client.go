// Package github implements the platform API against a GitHub-style REST
// platform (github.com or a GitHub Enterprise instance).
package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/edutools/classrepo/internal/git"
	"github.com/edutools/classrepo/internal/logging"
	"github.com/edutools/classrepo/internal/platform"
	"github.com/edutools/classrepo/pkg/models"
)

// requiredOAuthScopes are the token scopes needed for bulk team and repo
// administration.
var requiredOAuthScopes = []string{"admin:org", "repo"}

// Client is the GitHub implementation of the platform API. It holds one
// authenticated connection and the handle of the target organization;
// everything else is resolved per call.
type Client struct {
	client  *github.Client
	org     *github.Organization
	orgName string
	baseURL string
	token   string
	user    string
}

var _ platform.API = (*Client)(nil)

// NewClient creates an authenticated GitHub client targeting the given
// organization. baseURL is the REST endpoint (https://api.github.com, or
// https://<host>/api/v3 for Enterprise).
func NewClient(ctx context.Context, baseURL, token, orgName, user string) (*Client, error) {
	if token == "" {
		return nil, platform.BadCredentialsError{Msg: "token must not be empty", Status: http.StatusUnauthorized}
	}

	gh, err := newGitHubClient(ctx, baseURL, token)
	if err != nil {
		return nil, err
	}

	logging.Debug("github configuration",
		"base_url", baseURL,
		"org", orgName,
		"token", logging.MaskSensitive(token))

	org, _, err := gh.Organizations.Get(ctx, orgName)
	if err != nil {
		return nil, translate(err)
	}

	return &Client{
		client:  gh,
		org:     org,
		orgName: orgName,
		baseURL: baseURL,
		token:   token,
		user:    user,
	}, nil
}

// newGitHubClient builds the underlying go-github client with a static
// token source, pointing it at a custom endpoint unless baseURL is the
// public API.
func newGitHubClient(ctx context.Context, baseURL, token string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	client := github.NewClient(tc)
	if baseURL != "" && baseURL != "https://api.github.com" {
		endpoint := baseURL
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = parsed
		client.UploadURL = parsed
	}
	return client, nil
}

// translate converts any error from a go-github call into the shared error
// taxonomy. Platform-reported statuses map onto the typed errors; network
// name-resolution failures mean the service itself was not found; anything
// else is unexpected but never swallowed.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return platform.NotFoundError{Msg: ghErr.Message}
		case http.StatusUnauthorized:
			return platform.BadCredentialsError{
				Msg:    "credentials rejected, verify that the token has correct access",
				Status: http.StatusUnauthorized,
			}
		default:
			return platform.APIError{Msg: ghErr.Message, Status: ghErr.Response.StatusCode}
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return platform.ServiceNotFoundError{Msg: "GitHub service could not be found, check the base url"}
	}
	return platform.UnexpectedError{Err: err}
}

// errStatus returns the HTTP status of a go-github error, or 0.
func errStatus(err error) int {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	return 0
}

// EnsureTeamsAndMembers implements platform.API.
func (c *Client) EnsureTeamsAndMembers(ctx context.Context, teams []models.TeamSpec, permission platform.TeamPermission) ([]models.TeamSpec, error) {
	existing, err := c.listTeams(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*github.Team, len(existing))
	for _, team := range existing {
		byName[team.GetName()] = team
	}

	result := make([]models.TeamSpec, 0, len(teams))
	for _, spec := range teams {
		ghTeam, ok := byName[spec.Name]
		if !ok {
			created, _, err := c.client.Teams.CreateTeam(ctx, c.orgName, github.NewTeam{
				Name:       spec.Name,
				Permission: github.String(string(permission)),
				Privacy:    github.String("closed"),
			})
			if err != nil {
				return nil, translate(err)
			}
			logging.Info("created team", "team", spec.Name)
			ghTeam = created
			byName[spec.Name] = created
		}

		if err := c.ensureMembers(ctx, ghTeam, spec.Members); err != nil {
			return nil, err
		}
		result = append(result, spec.WithID(ghTeam.GetID()))
	}
	return result, nil
}

// listTeams fetches every team in the target organization.
func (c *Client) listTeams(ctx context.Context) ([]*github.Team, error) {
	opts := &github.ListOptions{PerPage: 100}
	var all []*github.Team
	for {
		teams, resp, err := c.client.Teams.ListTeams(ctx, c.orgName, opts)
		if err != nil {
			return nil, translate(err)
		}
		all = append(all, teams...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// ensureMembers adds any team members not already present. Usernames that
// do not resolve to an account are logged and skipped; existing members are
// never removed.
func (c *Client) ensureMembers(ctx context.Context, team *github.Team, members []string) error {
	existing := make(map[string]bool)
	opts := &github.TeamListTeamMembersOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		users, resp, err := c.client.Teams.ListTeamMembersBySlug(ctx, c.orgName, team.GetSlug(), opts)
		if err != nil {
			return translate(err)
		}
		for _, user := range users {
			existing[user.GetLogin()] = true
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	for _, member := range members {
		if existing[member] {
			logging.Debug("user already in team, skipping", "user", member, "team", team.GetName())
			continue
		}
		if _, _, err := c.client.Users.Get(ctx, member); err != nil {
			if errStatus(err) == http.StatusNotFound {
				logging.Warn("user does not exist, skipping", "user", member)
				continue
			}
			return translate(err)
		}
		_, _, err := c.client.Teams.AddTeamMembershipBySlug(ctx, c.orgName, team.GetSlug(), member, nil)
		if err != nil {
			return translate(err)
		}
		logging.Info("added user to team", "user", member, "team", team.GetName())
	}
	return nil
}

// CreateRepos implements platform.API. GitHub reports an existing
// repository name as 422; those are fetched instead of created.
func (c *Client) CreateRepos(ctx context.Context, repos []models.RepoSpec) ([]string, error) {
	urls := make([]string, 0, len(repos))
	for _, spec := range repos {
		repo := &github.Repository{
			Name:        github.String(spec.Name),
			Description: github.String(spec.Description),
			Private:     github.Bool(spec.Private),
		}
		if spec.TeamID != 0 {
			repo.TeamID = github.Int64(spec.TeamID)
		}

		created, _, err := c.client.Repositories.Create(ctx, c.orgName, repo)
		if err == nil {
			logging.Info("created repository", "org", c.orgName, "repo", spec.Name)
			urls = append(urls, created.GetHTMLURL())
			continue
		}
		if errStatus(err) != http.StatusUnprocessableEntity {
			return nil, translate(err)
		}

		existing, _, err := c.client.Repositories.Get(ctx, c.orgName, spec.Name)
		if err != nil {
			return nil, translate(err)
		}
		logging.Info("repository already exists", "org", c.orgName, "repo", spec.Name)
		urls = append(urls, existing.GetHTMLURL())
	}
	return c.insertAuth(urls)
}

// GetRepoURLs implements platform.API. URLs are computed, not verified:
// checking existence of thousands of repos costs one round-trip each.
func (c *Client) GetRepoURLs(ctx context.Context, masterRepoNames []string, orgName string, teams []models.TeamSpec) ([]string, error) {
	orgURL := c.org.GetHTMLURL()
	if orgName != "" && orgName != c.orgName {
		org, _, err := c.client.Organizations.Get(ctx, orgName)
		if err != nil {
			return nil, translate(err)
		}
		orgURL = org.GetHTMLURL()
	}

	repoNames := masterRepoNames
	if len(teams) > 0 {
		teamNames := make([]string, len(teams))
		for i, team := range teams {
			teamNames[i] = team.Name
		}
		repoNames = platform.GenerateRepoNames(teamNames, masterRepoNames)
	}

	urls := make([]string, len(repoNames))
	for i, name := range repoNames {
		urls[i] = orgURL + "/" + name
	}
	return c.insertAuth(urls)
}

// insertAuth embeds the client's credentials into each URL.
func (c *Client) insertAuth(urls []string) ([]string, error) {
	authed := make([]string, len(urls))
	for i, u := range urls {
		var (
			inserted string
			err      error
		)
		if c.user != "" {
			inserted, err = git.InsertTokenWithUser(u, c.user, c.token)
		} else {
			inserted, err = git.InsertToken(u, c.token)
		}
		if err != nil {
			return nil, err
		}
		authed[i] = inserted
	}
	return authed, nil
}

// getReposByName resolves each named repository, skipping (with a warning)
// names that do not exist in the organization.
func (c *Client) getReposByName(ctx context.Context, repoNames []string) ([]*github.Repository, error) {
	var repos []*github.Repository
	var missing []string
	for _, name := range repoNames {
		repo, _, err := c.client.Repositories.Get(ctx, c.orgName, name)
		if err != nil {
			if errStatus(err) == http.StatusNotFound {
				missing = append(missing, name)
				continue
			}
			return nil, translate(err)
		}
		repos = append(repos, repo)
	}
	if len(missing) > 0 {
		logging.Warn("can't find repos", "repos", strings.Join(missing, ", "))
	}
	return repos, nil
}

// GetIssues implements platform.API.
func (c *Client) GetIssues(ctx context.Context, repoNames []string, state models.IssueState, titleRegex *regexp.Regexp) ([]platform.RepoIssues, error) {
	repos, err := c.getReposByName(ctx, repoNames)
	if err != nil {
		return nil, err
	}

	result := make([]platform.RepoIssues, 0, len(repos))
	for _, repo := range repos {
		issues, err := c.listIssues(ctx, repo.GetName(), state)
		if err != nil {
			return nil, err
		}
		matched := make([]models.Issue, 0, len(issues))
		for _, issue := range issues {
			if titleRegex != nil && !titleRegex.MatchString(issue.Title) {
				continue
			}
			matched = append(matched, issue)
		}
		result = append(result, platform.RepoIssues{RepoName: repo.GetName(), Issues: matched})
	}
	return result, nil
}

// listIssues fetches all issues of one repository in the given state,
// excluding pull requests, which the issues endpoint also returns.
func (c *Client) listIssues(ctx context.Context, repoName string, state models.IssueState) ([]models.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       string(state),
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var all []*github.Issue
	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, c.orgName, repoName, opts)
		if err != nil {
			return nil, translate(err)
		}
		all = append(all, issues...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	result := make([]models.Issue, 0, len(all))
	for _, issue := range all {
		if issue.PullRequestLinks != nil {
			continue
		}
		result = append(result, models.Issue{
			Title:     issue.GetTitle(),
			Body:      issue.GetBody(),
			Number:    issue.GetNumber(),
			CreatedAt: issue.GetCreatedAt(),
			Author:    issue.GetUser().GetLogin(),
			State:     models.IssueState(issue.GetState()),
		})
	}
	return result, nil
}

// OpenIssue implements platform.API.
func (c *Client) OpenIssue(ctx context.Context, title, body string, repoNames []string) error {
	repos, err := c.getReposByName(ctx, repoNames)
	if err != nil {
		return err
	}
	for _, repo := range repos {
		created, _, err := c.client.Issues.Create(ctx, c.orgName, repo.GetName(), &github.IssueRequest{
			Title: github.String(title),
			Body:  github.String(body),
		})
		if err != nil {
			return translate(err)
		}
		logging.Info("opened issue",
			"repo", repo.GetName(),
			"number", created.GetNumber(),
			"title", created.GetTitle())
	}
	return nil
}

// CloseIssue implements platform.API.
func (c *Client) CloseIssue(ctx context.Context, titleRegex *regexp.Regexp, repoNames []string) error {
	repos, err := c.getReposByName(ctx, repoNames)
	if err != nil {
		return err
	}

	closed := 0
	for _, repo := range repos {
		issues, err := c.listIssues(ctx, repo.GetName(), models.IssueStateOpen)
		if err != nil {
			return err
		}
		for _, issue := range issues {
			if titleRegex != nil && !titleRegex.MatchString(issue.Title) {
				continue
			}
			_, _, err := c.client.Issues.Edit(ctx, c.orgName, repo.GetName(), issue.Number, &github.IssueRequest{
				State: github.String("closed"),
			})
			if err != nil {
				return translate(err)
			}
			logging.Info("closed issue", "repo", repo.GetName(), "number", issue.Number, "title", issue.Title)
			closed++
		}
	}
	if closed == 0 {
		logging.Warn("found no matching issues")
	}
	return nil
}

// AddReposToReviewTeams implements platform.API.
func (c *Client) AddReposToReviewTeams(ctx context.Context, teamToRepos map[string][]string, issue *models.Issue) error {
	if issue == nil {
		issue = &platform.DefaultReviewIssue
	}

	teams, err := c.listTeams(ctx)
	if err != nil {
		return err
	}
	bySlugName := make(map[string]*github.Team, len(teams))
	for _, team := range teams {
		bySlugName[team.GetName()] = team
	}

	for teamName, repoNames := range teamToRepos {
		team, ok := bySlugName[teamName]
		if !ok {
			logging.Warn("can't find review team, skipping", "team", teamName)
			continue
		}

		assignees, err := c.teamMemberLogins(ctx, team)
		if err != nil {
			return err
		}

		for _, repoName := range repoNames {
			_, err := c.client.Teams.AddTeamRepoBySlug(ctx, c.orgName, team.GetSlug(), c.orgName, repoName,
				&github.TeamAddTeamRepoOptions{Permission: string(platform.PermissionPull)})
			if err != nil {
				return translate(err)
			}
			logging.Info("added team to repo", "team", teamName, "repo", repoName, "permission", platform.PermissionPull)

			created, _, err := c.client.Issues.Create(ctx, c.orgName, repoName, &github.IssueRequest{
				Title:     github.String(issue.Title),
				Body:      github.String(issue.Body),
				Assignees: &assignees,
			})
			if err != nil {
				return translate(err)
			}
			logging.Info("opened review issue", "repo", repoName, "number", created.GetNumber())
		}
	}
	return nil
}

// teamMemberLogins lists the usernames of a team's members.
func (c *Client) teamMemberLogins(ctx context.Context, team *github.Team) ([]string, error) {
	var logins []string
	opts := &github.TeamListTeamMembersOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		users, resp, err := c.client.Teams.ListTeamMembersBySlug(ctx, c.orgName, team.GetSlug(), opts)
		if err != nil {
			return nil, translate(err)
		}
		for _, user := range users {
			logins = append(logins, user.GetLogin())
		}
		if resp.NextPage == 0 {
			return logins, nil
		}
		opts.Page = resp.NextPage
	}
}

// VerifySettings implements platform.API by delegating to the package-level
// preflight, which does not require an already-working organization handle.
func (c *Client) VerifySettings(ctx context.Context, user, orgName, token, masterOrgName string) error {
	return VerifySettings(ctx, c.baseURL, user, orgName, token, masterOrgName)
}

// VerifySettings runs the preflight check sequence against a GitHub
// instance: token present, user resolvable at the base URL, token scopes
// sufficient, organization(s) exist, user is an owner. Each step fails fast;
// later steps are not attempted once one fails.
func VerifySettings(ctx context.Context, baseURL, user, orgName, token, masterOrgName string) error {
	logging.Info("verifying settings")
	if token == "" {
		return platform.BadCredentialsError{
			Msg:    "token is empty: set CLASSREPO_TOKEN or supply --token",
			Status: http.StatusUnauthorized,
		}
	}

	gh, err := newGitHubClient(ctx, baseURL, token)
	if err != nil {
		return err
	}

	logging.Info("fetching user information", "user", user)
	fetched, resp, err := gh.Users.Get(ctx, user)
	if err != nil {
		if errStatus(err) == http.StatusNotFound {
			return platform.NotFoundError{Msg: fmt.Sprintf(
				"user %s could not be found: possible reasons are a bad base url, a bad username or bad token permissions", user)}
		}
		return translate(err)
	}
	if fetched.GetLogin() != user {
		return platform.UnexpectedError{Err: fmt.Errorf(
			"specified login is %s but the fetched user's login is %s: the base url may point at a GitHub instance but not its API endpoint",
			user, fetched.GetLogin())}
	}
	logging.Info("user exists and base url looks okay", "user", user)

	logging.Info("verifying token scopes")
	scopes := strings.Split(resp.Header.Get("X-OAuth-Scopes"), ",")
	scopeSet := make(map[string]bool, len(scopes))
	for _, scope := range scopes {
		scopeSet[strings.TrimSpace(scope)] = true
	}
	for _, required := range requiredOAuthScopes {
		if !scopeSet[required] {
			return platform.BadCredentialsError{
				Msg:    fmt.Sprintf("missing one or more token scopes: have %v, required %v", scopes, requiredOAuthScopes),
				Status: http.StatusUnauthorized,
			}
		}
	}
	logging.Info("token scopes look okay")

	if err := verifyOrg(ctx, gh, orgName, user); err != nil {
		return err
	}
	if masterOrgName != "" && masterOrgName != orgName {
		if err := verifyOrg(ctx, gh, masterOrgName, user); err != nil {
			return err
		}
	}

	logging.Info("all settings check out")
	return nil
}

// verifyOrg checks that the organization exists and that the user is one of
// its owners.
func verifyOrg(ctx context.Context, gh *github.Client, orgName, user string) error {
	logging.Info("fetching organization", "org", orgName)
	if _, _, err := gh.Organizations.Get(ctx, orgName); err != nil {
		if errStatus(err) == http.StatusNotFound {
			return platform.NotFoundError{Msg: fmt.Sprintf(
				"organization %s could not be found: it may not exist, or the user may lack access to it", orgName)}
		}
		return translate(err)
	}

	logging.Info("verifying organization role", "org", orgName, "user", user)
	opts := &github.ListMembersOptions{
		Role:        "admin",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		owners, resp, err := gh.Organizations.ListMembers(ctx, orgName, opts)
		if err != nil {
			return translate(err)
		}
		for _, owner := range owners {
			if owner.GetLogin() == user {
				logging.Info("user is an owner of organization", "user", user, "org", orgName)
				return nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return platform.BadCredentialsError{
		Msg:    fmt.Sprintf("user %s is not an owner of organization %s", user, orgName),
		Status: http.StatusForbidden,
	}
}
