// Package fake provides an in-memory implementation of the platform API for
// testing. It mirrors the semantics of the real backends (idempotent
// creation, membership reconciliation, missing-repo skipping) without any
// network. State can be written to and read from disk with explicit Save
// and Load calls; the production interface never persists anything.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/edutools/classrepo/internal/git"
	"github.com/edutools/classrepo/internal/logging"
	"github.com/edutools/classrepo/internal/platform"
	"github.com/edutools/classrepo/pkg/models"
)

// Repo is a repository held by the fake platform.
type Repo struct {
	Name        string
	Description string
	Private     bool
	TeamID      int64
	Issues      []models.Issue
	// TeamsWithAccess names the teams granted access beyond the owner.
	TeamsWithAccess []string
}

// Team is a team held by the fake platform.
type Team struct {
	Name       string
	Members    []string
	ID         int64
	Permission platform.TeamPermission
}

// state is the serializable platform state.
type state struct {
	Repos  map[string]*Repo
	Teams  map[string]*Team
	Users  map[string]bool
	NextID int64
}

// Platform is the fake backend. The zero value is not usable; create one
// with NewPlatform.
type Platform struct {
	mu      sync.Mutex
	baseURL string
	orgName string
	user    string
	token   string
	st      state
}

var _ platform.API = (*Platform)(nil)

// NewPlatform creates an empty fake platform for the given organization.
func NewPlatform(baseURL, orgName, user, token string) *Platform {
	return &Platform{
		baseURL: baseURL,
		orgName: orgName,
		user:    user,
		token:   token,
		st: state{
			Repos:  make(map[string]*Repo),
			Teams:  make(map[string]*Team),
			Users:  make(map[string]bool),
			NextID: 1,
		},
	}
}

// AddUsers registers platform accounts. Team member reconciliation skips
// usernames that were never registered, mirroring the real backends.
func (p *Platform) AddUsers(usernames ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, username := range usernames {
		p.st.Users[username] = true
	}
}

// GetRepo returns a copy of a stored repository and whether it exists.
func (p *Platform) GetRepo(name string) (Repo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	repo, ok := p.st.Repos[name]
	if !ok {
		return Repo{}, false
	}
	return *repo, true
}

// GetTeam returns a copy of a stored team and whether it exists.
func (p *Platform) GetTeam(name string) (Team, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	team, ok := p.st.Teams[name]
	if !ok {
		return Team{}, false
	}
	return *team, true
}

// EnsureTeamsAndMembers implements platform.API.
func (p *Platform) EnsureTeamsAndMembers(ctx context.Context, teams []models.TeamSpec, permission platform.TeamPermission) ([]models.TeamSpec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]models.TeamSpec, 0, len(teams))
	for _, spec := range teams {
		team, ok := p.st.Teams[spec.Name]
		if !ok {
			team = &Team{Name: spec.Name, ID: p.st.NextID, Permission: permission}
			p.st.NextID++
			p.st.Teams[spec.Name] = team
		}

		existing := make(map[string]bool, len(team.Members))
		for _, member := range team.Members {
			existing[member] = true
		}
		for _, member := range spec.Members {
			if existing[member] {
				continue
			}
			if !p.st.Users[member] {
				logging.Warn("user does not exist, skipping", "user", member)
				continue
			}
			team.Members = append(team.Members, member)
		}
		result = append(result, spec.WithID(team.ID))
	}
	return result, nil
}

// CreateRepos implements platform.API.
func (p *Platform) CreateRepos(ctx context.Context, repos []models.RepoSpec) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	urls := make([]string, 0, len(repos))
	for _, spec := range repos {
		if _, ok := p.st.Repos[spec.Name]; !ok {
			p.st.Repos[spec.Name] = &Repo{
				Name:        spec.Name,
				Description: spec.Description,
				Private:     spec.Private,
				TeamID:      spec.TeamID,
			}
		}
		authed, err := p.insertAuth(p.repoURL(spec.Name))
		if err != nil {
			return nil, err
		}
		urls = append(urls, authed)
	}
	return urls, nil
}

// GetRepoURLs implements platform.API.
func (p *Platform) GetRepoURLs(ctx context.Context, masterRepoNames []string, orgName string, teams []models.TeamSpec) ([]string, error) {
	repoNames := masterRepoNames
	if len(teams) > 0 {
		teamNames := make([]string, len(teams))
		for i, team := range teams {
			teamNames[i] = team.Name
		}
		repoNames = platform.GenerateRepoNames(teamNames, masterRepoNames)
	}

	urls := make([]string, 0, len(repoNames))
	for _, name := range repoNames {
		authed, err := p.insertAuth(p.repoURL(name))
		if err != nil {
			return nil, err
		}
		urls = append(urls, authed)
	}
	return urls, nil
}

func (p *Platform) repoURL(repoName string) string {
	return p.baseURL + "/" + p.orgName + "/" + repoName
}

func (p *Platform) insertAuth(url string) (string, error) {
	if p.user != "" {
		return git.InsertTokenWithUser(url, p.user, p.token)
	}
	return git.InsertToken(url, p.token)
}

// existingRepos resolves repo names against stored repos, warning about the
// missing ones. Callers must hold the mutex.
func (p *Platform) existingRepos(repoNames []string) []*Repo {
	var repos []*Repo
	for _, name := range repoNames {
		repo, ok := p.st.Repos[name]
		if !ok {
			logging.Warn("can't find repo, skipping", "repo", name)
			continue
		}
		repos = append(repos, repo)
	}
	return repos
}

// GetIssues implements platform.API.
func (p *Platform) GetIssues(ctx context.Context, repoNames []string, state models.IssueState, titleRegex *regexp.Regexp) ([]platform.RepoIssues, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result []platform.RepoIssues
	for _, repo := range p.existingRepos(repoNames) {
		var matched []models.Issue
		for _, issue := range repo.Issues {
			if issue.State != state {
				continue
			}
			if titleRegex != nil && !titleRegex.MatchString(issue.Title) {
				continue
			}
			matched = append(matched, issue)
		}
		result = append(result, platform.RepoIssues{RepoName: repo.Name, Issues: matched})
	}
	return result, nil
}

// OpenIssue implements platform.API.
func (p *Platform) OpenIssue(ctx context.Context, title, body string, repoNames []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, repo := range p.existingRepos(repoNames) {
		p.openIssueLocked(repo, title, body)
	}
	return nil
}

func (p *Platform) openIssueLocked(repo *Repo, title, body string) {
	repo.Issues = append(repo.Issues, models.Issue{
		Title:     title,
		Body:      body,
		Number:    len(repo.Issues) + 1,
		CreatedAt: time.Now(),
		Author:    p.user,
		State:     models.IssueStateOpen,
	})
}

// CloseIssue implements platform.API.
func (p *Platform) CloseIssue(ctx context.Context, titleRegex *regexp.Regexp, repoNames []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	closed := 0
	for _, repo := range p.existingRepos(repoNames) {
		for i := range repo.Issues {
			issue := &repo.Issues[i]
			if issue.State != models.IssueStateOpen {
				continue
			}
			if titleRegex != nil && !titleRegex.MatchString(issue.Title) {
				continue
			}
			issue.State = models.IssueStateClosed
			closed++
		}
	}
	if closed == 0 {
		logging.Warn("found no matching issues")
	}
	return nil
}

// AddReposToReviewTeams implements platform.API.
func (p *Platform) AddReposToReviewTeams(ctx context.Context, teamToRepos map[string][]string, issue *models.Issue) error {
	if issue == nil {
		issue = &platform.DefaultReviewIssue
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for teamName, repoNames := range teamToRepos {
		if _, ok := p.st.Teams[teamName]; !ok {
			logging.Warn("can't find review team, skipping", "team", teamName)
			continue
		}
		for _, repo := range p.existingRepos(repoNames) {
			repo.TeamsWithAccess = append(repo.TeamsWithAccess, teamName)
			p.openIssueLocked(repo, issue.Title, issue.Body)
		}
	}
	return nil
}

// VerifySettings implements platform.API. The fake accepts any settings
// matching its own construction.
func (p *Platform) VerifySettings(ctx context.Context, user, orgName, token, masterOrgName string) error {
	if token == "" {
		return platform.BadCredentialsError{Msg: "token is empty"}
	}
	if orgName != p.orgName {
		return platform.NotFoundError{Msg: fmt.Sprintf("organization %s could not be found", orgName)}
	}
	return nil
}

// Save writes the platform state to path. Test harness convenience only.
func (p *Platform) Save(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := json.MarshalIndent(p.st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fake platform state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write fake platform state: %w", err)
	}
	return nil
}

// Load replaces the platform state with the contents of path.
func (p *Platform) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fake platform state: %w", err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to unmarshal fake platform state: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.st = st
	return nil
}
