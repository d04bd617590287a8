// Package gitlab implements the platform API against a GitLab-style REST
// platform. The mapping differs from GitHub: the target organization is a
// group, each team is a subgroup of it, and repositories are projects
// created in the team's subgroup namespace.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/xanzy/go-gitlab"

	"github.com/edutools/classrepo/internal/git"
	"github.com/edutools/classrepo/internal/logging"
	"github.com/edutools/classrepo/internal/platform"
	"github.com/edutools/classrepo/pkg/models"
)

// tokenUser is the username GitLab expects in credential-bearing HTTPS URLs
// when authenticating with an OAuth/personal access token.
const tokenUser = "oauth2"

// Client is the GitLab implementation of the platform API.
type Client struct {
	client    *gitlab.Client
	group     *gitlab.Group
	groupName string
	baseURL   string
	token     string
}

var _ platform.API = (*Client)(nil)

// NewClient creates an authenticated GitLab client targeting the given
// group. baseURL is the instance URL (e.g. https://gitlab.example.com); the
// user argument of the GitHub backend has no GitLab equivalent and token
// auth always uses the oauth2 pseudo-user.
func NewClient(ctx context.Context, baseURL, token, groupName string) (*Client, error) {
	if token == "" {
		return nil, platform.BadCredentialsError{Msg: "token must not be empty", Status: http.StatusUnauthorized}
	}

	gl, err := gitlab.NewClient(token, gitlab.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}

	logging.Debug("gitlab configuration",
		"base_url", baseURL,
		"group", groupName,
		"token", logging.MaskSensitive(token))

	client := &Client{
		client:    gl,
		groupName: groupName,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		token:     token,
	}

	group, err := client.findGroup(ctx, groupName)
	if err != nil {
		return nil, err
	}
	client.group = group
	return client, nil
}

// translate converts any error from a go-gitlab call into the shared error
// taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var glErr *gitlab.ErrorResponse
	if errors.As(err, &glErr) && glErr.Response != nil {
		switch glErr.Response.StatusCode {
		case http.StatusNotFound:
			return platform.NotFoundError{Msg: glErr.Message}
		case http.StatusUnauthorized:
			return platform.BadCredentialsError{
				Msg:    "credentials rejected, verify that the token has correct access",
				Status: http.StatusUnauthorized,
			}
		default:
			return platform.APIError{Msg: glErr.Message, Status: glErr.Response.StatusCode}
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return platform.ServiceNotFoundError{Msg: "GitLab service could not be found, check the base url"}
	}
	return platform.UnexpectedError{Err: err}
}

// errStatus returns the HTTP status of a go-gitlab error, or 0.
func errStatus(err error) int {
	var glErr *gitlab.ErrorResponse
	if errors.As(err, &glErr) && glErr.Response != nil {
		return glErr.Response.StatusCode
	}
	return 0
}

// findGroup resolves a top-level group by exact name.
func (c *Client) findGroup(ctx context.Context, name string) (*gitlab.Group, error) {
	groups, _, err := c.client.Groups.ListGroups(&gitlab.ListGroupsOptions{
		Search: gitlab.String(name),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	for _, group := range groups {
		if group.Name == name {
			return group, nil
		}
	}
	return nil, platform.NotFoundError{Msg: fmt.Sprintf("group %s could not be found", name)}
}

// EnsureTeamsAndMembers implements platform.API. Teams are subgroups of the
// target group; members get developer access.
func (c *Client) EnsureTeamsAndMembers(ctx context.Context, teams []models.TeamSpec, permission platform.TeamPermission) ([]models.TeamSpec, error) {
	existing, _, err := c.client.Groups.ListSubGroups(c.group.ID, &gitlab.ListSubGroupsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	byName := make(map[string]*gitlab.Group, len(existing))
	for _, sub := range existing {
		byName[sub.Name] = sub
	}

	access := accessLevel(permission)
	result := make([]models.TeamSpec, 0, len(teams))
	for _, spec := range teams {
		sub, ok := byName[spec.Name]
		if !ok {
			created, _, err := c.client.Groups.CreateGroup(&gitlab.CreateGroupOptions{
				Name:     gitlab.String(spec.Name),
				Path:     gitlab.String(spec.Name),
				ParentID: gitlab.Int(c.group.ID),
			}, gitlab.WithContext(ctx))
			if err != nil {
				return nil, translate(err)
			}
			logging.Info("created team", "team", spec.Name)
			sub = created
			byName[spec.Name] = created
		}

		if err := c.ensureMembers(ctx, sub, spec.Members, access); err != nil {
			return nil, err
		}
		result = append(result, spec.WithID(int64(sub.ID)))
	}
	return result, nil
}

// accessLevel maps the platform-neutral permission onto GitLab access
// levels.
func accessLevel(permission platform.TeamPermission) gitlab.AccessLevelValue {
	if permission == platform.PermissionPull {
		return gitlab.ReporterPermissions
	}
	return gitlab.DeveloperPermissions
}

// ensureMembers adds missing members to a team subgroup. Unresolvable
// usernames are logged and skipped; existing members are never removed.
func (c *Client) ensureMembers(ctx context.Context, group *gitlab.Group, members []string, access gitlab.AccessLevelValue) error {
	current, _, err := c.client.Groups.ListGroupMembers(group.ID, &gitlab.ListGroupMembersOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return translate(err)
	}
	existing := make(map[string]bool, len(current))
	for _, member := range current {
		existing[member.Username] = true
	}

	for _, member := range members {
		if existing[member] {
			logging.Debug("user already in team, skipping", "user", member, "team", group.Name)
			continue
		}
		users, _, err := c.client.Users.ListUsers(&gitlab.ListUsersOptions{
			Username: gitlab.String(member),
		}, gitlab.WithContext(ctx))
		if err != nil {
			return translate(err)
		}
		if len(users) == 0 {
			logging.Warn("user does not exist, skipping", "user", member)
			continue
		}
		_, _, err = c.client.GroupMembers.AddGroupMember(group.ID, &gitlab.AddGroupMemberOptions{
			UserID:      gitlab.Int(users[0].ID),
			AccessLevel: gitlab.AccessLevel(access),
		}, gitlab.WithContext(ctx))
		if err != nil {
			return translate(err)
		}
		logging.Info("added user to team", "user", member, "team", group.Name)
	}
	return nil
}

// CreateRepos implements platform.API. GitLab reports a taken project path
// as 400; those are fetched instead of created.
func (c *Client) CreateRepos(ctx context.Context, repos []models.RepoSpec) ([]string, error) {
	urls := make([]string, 0, len(repos))
	for _, spec := range repos {
		visibility := gitlab.PublicVisibility
		if spec.Private {
			visibility = gitlab.PrivateVisibility
		}
		opts := &gitlab.CreateProjectOptions{
			Name:        gitlab.String(spec.Name),
			Path:        gitlab.String(spec.Name),
			Description: gitlab.String(spec.Description),
			Visibility:  gitlab.Visibility(visibility),
		}
		if spec.TeamID != 0 {
			opts.NamespaceID = gitlab.Int(int(spec.TeamID))
		}

		project, _, err := c.client.Projects.CreateProject(opts, gitlab.WithContext(ctx))
		if err == nil {
			logging.Info("created repository", "group", c.groupName, "repo", spec.Name)
			urls = append(urls, project.HTTPURLToRepo)
			continue
		}
		if errStatus(err) != http.StatusBadRequest {
			return nil, translate(err)
		}

		existing, err := c.getProjectInTeam(ctx, spec)
		if err != nil {
			return nil, err
		}
		logging.Info("repository already exists", "group", c.groupName, "repo", spec.Name)
		urls = append(urls, existing.HTTPURLToRepo)
	}
	return c.insertAuth(urls)
}

// getProjectInTeam fetches an existing project by its full path, resolving
// the owning team subgroup from the spec's namespace id.
func (c *Client) getProjectInTeam(ctx context.Context, spec models.RepoSpec) (*gitlab.Project, error) {
	path := c.group.Path + "/" + spec.Name
	if spec.TeamID != 0 {
		sub, _, err := c.client.Groups.GetGroup(int(spec.TeamID), nil, gitlab.WithContext(ctx))
		if err != nil {
			return nil, translate(err)
		}
		path = c.group.Path + "/" + sub.Path + "/" + spec.Name
	}
	project, _, err := c.client.Projects.GetProject(path, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	return project, nil
}

// GetRepoURLs implements platform.API. Student repos live under their
// team's subgroup, so team URLs carry the extra path segment.
func (c *Client) GetRepoURLs(ctx context.Context, masterRepoNames []string, orgName string, teams []models.TeamSpec) ([]string, error) {
	groupName := c.groupName
	if orgName != "" {
		groupName = orgName
	}
	groupURL := c.baseURL + "/" + groupName

	var urls []string
	if len(teams) == 0 {
		urls = make([]string, 0, len(masterRepoNames))
		for _, name := range masterRepoNames {
			urls = append(urls, groupURL+"/"+name+".git")
		}
	} else {
		urls = make([]string, 0, len(teams)*len(masterRepoNames))
		for _, base := range masterRepoNames {
			for _, team := range teams {
				urls = append(urls, fmt.Sprintf("%s/%s/%s.git",
					groupURL, team.Name, platform.GenerateRepoName(team.Name, base)))
			}
		}
	}
	return c.insertAuth(urls)
}

// insertAuth embeds oauth2 token credentials into each URL.
func (c *Client) insertAuth(urls []string) ([]string, error) {
	authed := make([]string, len(urls))
	for i, u := range urls {
		inserted, err := git.InsertTokenWithUser(u, tokenUser, c.token)
		if err != nil {
			return nil, err
		}
		authed[i] = inserted
	}
	return authed, nil
}

// getProjectsByName resolves each named repository anywhere under the
// target group, skipping (with a warning) names that cannot be found.
func (c *Client) getProjectsByName(ctx context.Context, repoNames []string) ([]*gitlab.Project, error) {
	var projects []*gitlab.Project
	var missing []string
	for _, name := range repoNames {
		candidates, _, err := c.client.Groups.ListGroupProjects(c.group.ID, &gitlab.ListGroupProjectsOptions{
			Search:           gitlab.String(name),
			IncludeSubGroups: gitlab.Bool(true),
			ListOptions:      gitlab.ListOptions{PerPage: 100},
		}, gitlab.WithContext(ctx))
		if err != nil {
			return nil, translate(err)
		}

		found := false
		for _, project := range candidates {
			if project.Path == name || project.Name == name {
				projects = append(projects, project)
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		logging.Warn("can't find repos", "repos", strings.Join(missing, ", "))
	}
	return projects, nil
}

// issueState maps the platform-neutral state onto GitLab's wire values.
func issueState(state models.IssueState) string {
	if state == models.IssueStateOpen {
		return "opened"
	}
	return string(state)
}

// fromIssueState maps GitLab's wire state back.
func fromIssueState(state string) models.IssueState {
	if state == "opened" {
		return models.IssueStateOpen
	}
	return models.IssueState(state)
}

// listIssues fetches all issues of one project in the given state.
func (c *Client) listIssues(ctx context.Context, project *gitlab.Project, state models.IssueState) ([]models.Issue, error) {
	opts := &gitlab.ListProjectIssuesOptions{
		State:       gitlab.String(issueState(state)),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	var result []models.Issue
	for {
		issues, resp, err := c.client.Issues.ListProjectIssues(project.ID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, translate(err)
		}
		for _, issue := range issues {
			converted := models.Issue{
				Title:  issue.Title,
				Body:   issue.Description,
				Number: issue.IID,
				State:  fromIssueState(issue.State),
			}
			if issue.CreatedAt != nil {
				converted.CreatedAt = *issue.CreatedAt
			}
			if issue.Author != nil {
				converted.Author = issue.Author.Username
			}
			result = append(result, converted)
		}
		if resp.NextPage == 0 {
			return result, nil
		}
		opts.Page = resp.NextPage
	}
}

// GetIssues implements platform.API.
func (c *Client) GetIssues(ctx context.Context, repoNames []string, state models.IssueState, titleRegex *regexp.Regexp) ([]platform.RepoIssues, error) {
	projects, err := c.getProjectsByName(ctx, repoNames)
	if err != nil {
		return nil, err
	}

	result := make([]platform.RepoIssues, 0, len(projects))
	for _, project := range projects {
		issues, err := c.listIssues(ctx, project, state)
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
		result = append(result, platform.RepoIssues{RepoName: project.Path, Issues: matched})
	}
	return result, nil
}

// OpenIssue implements platform.API.
func (c *Client) OpenIssue(ctx context.Context, title, body string, repoNames []string) error {
	projects, err := c.getProjectsByName(ctx, repoNames)
	if err != nil {
		return err
	}
	for _, project := range projects {
		created, _, err := c.client.Issues.CreateIssue(project.ID, &gitlab.CreateIssueOptions{
			Title:       gitlab.String(title),
			Description: gitlab.String(body),
		}, gitlab.WithContext(ctx))
		if err != nil {
			return translate(err)
		}
		logging.Info("opened issue", "repo", project.Path, "number", created.IID, "title", created.Title)
	}
	return nil
}

// CloseIssue implements platform.API.
func (c *Client) CloseIssue(ctx context.Context, titleRegex *regexp.Regexp, repoNames []string) error {
	projects, err := c.getProjectsByName(ctx, repoNames)
	if err != nil {
		return err
	}

	closed := 0
	for _, project := range projects {
		issues, err := c.listIssues(ctx, project, models.IssueStateOpen)
		if err != nil {
			return err
		}
		for _, issue := range issues {
			if titleRegex != nil && !titleRegex.MatchString(issue.Title) {
				continue
			}
			_, _, err := c.client.Issues.UpdateIssue(project.ID, issue.Number, &gitlab.UpdateIssueOptions{
				StateEvent: gitlab.String("close"),
			}, gitlab.WithContext(ctx))
			if err != nil {
				return translate(err)
			}
			logging.Info("closed issue", "repo", project.Path, "number", issue.Number, "title", issue.Title)
			closed++
		}
	}
	if closed == 0 {
		logging.Warn("found no matching issues")
	}
	return nil
}

// AddReposToReviewTeams implements platform.API. Review access is granted
// by sharing each project with the review team's subgroup.
func (c *Client) AddReposToReviewTeams(ctx context.Context, teamToRepos map[string][]string, issue *models.Issue) error {
	if issue == nil {
		issue = &platform.DefaultReviewIssue
	}

	for teamName, repoNames := range teamToRepos {
		sub, err := c.findSubGroup(ctx, teamName)
		if err != nil {
			var notFound platform.NotFoundError
			if errors.As(err, &notFound) {
				logging.Warn("can't find review team, skipping", "team", teamName)
				continue
			}
			return err
		}

		members, _, err := c.client.Groups.ListGroupMembers(sub.ID, &gitlab.ListGroupMembersOptions{
			ListOptions: gitlab.ListOptions{PerPage: 100},
		}, gitlab.WithContext(ctx))
		if err != nil {
			return translate(err)
		}
		assigneeIDs := make([]int, 0, len(members))
		for _, member := range members {
			assigneeIDs = append(assigneeIDs, member.ID)
		}

		projects, err := c.getProjectsByName(ctx, repoNames)
		if err != nil {
			return err
		}
		for _, project := range projects {
			_, err := c.client.Projects.ShareProjectWithGroup(project.ID, &gitlab.ShareWithGroupOptions{
				GroupID:     gitlab.Int(sub.ID),
				GroupAccess: gitlab.AccessLevel(gitlab.ReporterPermissions),
			}, gitlab.WithContext(ctx))
			if err != nil {
				return translate(err)
			}
			logging.Info("added team to repo", "team", teamName, "repo", project.Path)

			created, _, err := c.client.Issues.CreateIssue(project.ID, &gitlab.CreateIssueOptions{
				Title:       gitlab.String(issue.Title),
				Description: gitlab.String(issue.Body),
				AssigneeIDs: &assigneeIDs,
			}, gitlab.WithContext(ctx))
			if err != nil {
				return translate(err)
			}
			logging.Info("opened review issue", "repo", project.Path, "number", created.IID)
		}
	}
	return nil
}

// findSubGroup resolves a team subgroup of the target group by name.
func (c *Client) findSubGroup(ctx context.Context, name string) (*gitlab.Group, error) {
	subs, _, err := c.client.Groups.ListSubGroups(c.group.ID, &gitlab.ListSubGroupsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	for _, sub := range subs {
		if sub.Name == name {
			return sub, nil
		}
	}
	return nil, platform.NotFoundError{Msg: fmt.Sprintf("team %s could not be found", name)}
}

// VerifySettings implements platform.API by delegating to the package-level
// preflight.
func (c *Client) VerifySettings(ctx context.Context, user, orgName, token, masterOrgName string) error {
	return VerifySettings(ctx, c.baseURL, user, orgName, token, masterOrgName)
}

// VerifySettings runs the preflight check sequence against a GitLab
// instance: token present, identity resolvable, group(s) exist, user is an
// owner. GitLab does not expose token scopes over the API, so that step is
// logged and skipped. Each remaining step fails fast.
func VerifySettings(ctx context.Context, baseURL, user, orgName, token, masterOrgName string) error {
	logging.Info("verifying settings")
	if token == "" {
		return platform.BadCredentialsError{
			Msg:    "token is empty: set CLASSREPO_TOKEN or supply --token",
			Status: http.StatusUnauthorized,
		}
	}

	gl, err := gitlab.NewClient(token, gitlab.WithBaseURL(baseURL))
	if err != nil {
		return fmt.Errorf("failed to create gitlab client: %w", err)
	}

	logging.Info("fetching user information")
	current, _, err := gl.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return translate(err)
	}
	if user != "" && current.Username != user {
		logging.Warn("configured user differs from token identity",
			"user", user, "token_user", current.Username)
	}
	logging.Info("token identity resolved and base url looks okay", "user", current.Username)

	logging.Info("token scope verification is not supported by the GitLab API, skipping")

	if err := verifyGroup(ctx, gl, orgName, current.ID); err != nil {
		return err
	}
	if masterOrgName != "" && masterOrgName != orgName {
		if err := verifyGroup(ctx, gl, masterOrgName, current.ID); err != nil {
			return err
		}
	}

	logging.Info("all settings check out")
	return nil
}

// verifyGroup checks that the group exists and that the user is one of its
// owners.
func verifyGroup(ctx context.Context, gl *gitlab.Client, groupName string, userID int) error {
	logging.Info("fetching group", "group", groupName)
	groups, _, err := gl.Groups.ListGroups(&gitlab.ListGroupsOptions{
		Search: gitlab.String(groupName),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return translate(err)
	}
	var group *gitlab.Group
	for _, g := range groups {
		if g.Name == groupName {
			group = g
			break
		}
	}
	if group == nil {
		return platform.NotFoundError{Msg: fmt.Sprintf(
			"group %s could not be found: it may not exist, or the user may lack access to it", groupName)}
	}

	logging.Info("verifying group role", "group", groupName)
	members, _, err := gl.Groups.ListGroupMembers(group.ID, &gitlab.ListGroupMembersOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return translate(err)
	}
	for _, member := range members {
		if member.ID == userID && member.AccessLevel >= gitlab.OwnerPermissions {
			logging.Info("user is an owner of group", "group", groupName)
			return nil
		}
	}
	return platform.BadCredentialsError{
		Msg:    fmt.Sprintf("user is not an owner of group %s", groupName),
		Status: http.StatusForbidden,
	}
}
