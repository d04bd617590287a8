package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edutools/classrepo/internal/logging"
	"github.com/edutools/classrepo/internal/platform"
	"github.com/edutools/classrepo/pkg/models"
)

// masterTeamName is the team that owns migrated master repositories.
const masterTeamName = "master_repos"

// defaultBranch is the branch student repositories are provisioned on.
const defaultBranch = "master"

// SetupStudentRepos provisions one team and one repository per (student ×
// master repo) combination and pushes each master's content to its student
// repos. Existing teams, memberships and repositories are reused, so the
// workflow is safe to re-run.
func (s *Service) SetupStudentRepos(ctx context.Context, masterRepoURLs, students []string) error {
	if err := s.validateIdentity(); err != nil {
		return err
	}
	if err := validateNonEmpty("master repo urls", masterRepoURLs); err != nil {
		return err
	}
	if err := validateNoDuplicates("master repo urls", masterRepoURLs); err != nil {
		return err
	}
	if err := validateNonEmpty("students", students); err != nil {
		return err
	}
	if err := validateNoDuplicates("students", students); err != nil {
		return err
	}

	teams, err := studentTeams(students)
	if err != nil {
		return err
	}

	tmpdir, err := os.MkdirTemp("", "classrepo-setup-")
	if err != nil {
		return fmt.Errorf("failed to create temporary directory: %w", err)
	}
	defer os.RemoveAll(tmpdir)

	logging.Info("cloning into master repos", "count", len(masterRepoURLs))
	masterPaths, err := s.cloneMasters(ctx, masterRepoURLs, tmpdir)
	if err != nil {
		return err
	}

	teams, err = s.API.EnsureTeamsAndMembers(ctx, teams, platform.PermissionPush)
	if err != nil {
		return err
	}

	logging.Info("creating student repos", "count", len(teams)*len(masterRepoURLs))
	repos, err := studentRepoSpecs(masterRepoURLs, teams)
	if err != nil {
		return err
	}
	repoURLs, err := s.API.CreateRepos(ctx, repos)
	if err != nil {
		return err
	}

	logging.Info("pushing files to student repos", "count", len(repoURLs))
	tasks := pushTasks(masterPaths, repoURLs)
	failed, err := s.Git.PushBatch(ctx, tasks, s.Tries, s.Concurrency)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return transferFailure("push to", failed)
	}

	logging.Info("done setting up student repos")
	return nil
}

// UpdateStudentRepos pushes the current master repo contents to every
// existing student repository. Push failures surviving all retries are
// reported; when issue is non-nil it is opened in exactly the repositories
// that could not be updated instead of failing the workflow.
func (s *Service) UpdateStudentRepos(ctx context.Context, masterRepoURLs, students []string, issue *models.Issue) error {
	if err := s.validateIdentity(); err != nil {
		return err
	}
	if err := validateNonEmpty("master repo urls", masterRepoURLs); err != nil {
		return err
	}
	if err := validateNoDuplicates("master repo urls", masterRepoURLs); err != nil {
		return err
	}
	if err := validateNonEmpty("students", students); err != nil {
		return err
	}
	if err := validateNoDuplicates("students", students); err != nil {
		return err
	}

	teams, err := studentTeams(students)
	if err != nil {
		return err
	}

	masterNames := make([]string, len(masterRepoURLs))
	for i, url := range masterRepoURLs {
		masterNames[i] = platform.RepoBaseName(url)
	}
	repoURLs, err := s.API.GetRepoURLs(ctx, masterNames, "", teams)
	if err != nil {
		return err
	}

	tmpdir, err := os.MkdirTemp("", "classrepo-update-")
	if err != nil {
		return fmt.Errorf("failed to create temporary directory: %w", err)
	}
	defer os.RemoveAll(tmpdir)

	logging.Info("cloning into master repos", "count", len(masterRepoURLs))
	masterPaths, err := s.cloneMasters(ctx, masterRepoURLs, tmpdir)
	if err != nil {
		return err
	}

	logging.Info("pushing files to student repos", "count", len(repoURLs))
	tasks := pushTasks(masterPaths, repoURLs)
	failed, err := s.Git.PushBatch(ctx, tasks, s.Tries, s.Concurrency)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		failedNames := repoNamesFromURLs(failed)
		logging.Error("failed to push to repos", "repos", strings.Join(failedNames, ", "))
		if issue == nil {
			return transferFailure("push to", failed)
		}
		logging.Info("opening issue in repos to which push failed")
		if err := s.API.OpenIssue(ctx, issue.Title, issue.Body, failedNames); err != nil {
			return err
		}
	}

	logging.Info("done updating student repos")
	return nil
}

// MigrateRepos copies repositories from arbitrary HTTPS URLs into the
// target organization, owned by the master_repos team.
func (s *Service) MigrateRepos(ctx context.Context, masterRepoURLs []string) error {
	if err := s.validateIdentity(); err != nil {
		return err
	}
	if err := validateNonEmpty("master repo urls", masterRepoURLs); err != nil {
		return err
	}
	if err := validateNoDuplicates("master repo urls", masterRepoURLs); err != nil {
		return err
	}

	masterTeam, err := models.NewTeamSpec(nil, masterTeamName)
	if err != nil {
		return err
	}
	teams, err := s.API.EnsureTeamsAndMembers(ctx, []models.TeamSpec{masterTeam}, platform.PermissionPush)
	if err != nil {
		return err
	}
	masterTeam = teams[0]

	repos := make([]models.RepoSpec, 0, len(masterRepoURLs))
	for _, url := range masterRepoURLs {
		name := platform.RepoBaseName(url)
		spec, err := models.NewRepoSpec(name, fmt.Sprintf("Master repository %s", name), true, masterTeam.ID)
		if err != nil {
			return err
		}
		repos = append(repos, spec)
	}

	tmpdir, err := os.MkdirTemp("", "classrepo-migrate-")
	if err != nil {
		return fmt.Errorf("failed to create temporary directory: %w", err)
	}
	defer os.RemoveAll(tmpdir)

	logging.Info("cloning into master repos", "count", len(masterRepoURLs))
	masterPaths, err := s.cloneMasters(ctx, masterRepoURLs, tmpdir)
	if err != nil {
		return err
	}

	repoURLs, err := s.API.CreateRepos(ctx, repos)
	if err != nil {
		return err
	}

	tasks := make([]models.TransferTask, len(repoURLs))
	for i, url := range repoURLs {
		tasks[i] = models.TransferTask{
			LocalPath: masterPaths[i],
			RepoURL:   url,
			Branch:    defaultBranch,
		}
	}
	failed, err := s.Git.PushBatch(ctx, tasks, s.Tries, s.Concurrency)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return transferFailure("push to", failed)
	}

	logging.Info("done migrating repos")
	return nil
}

// CloneRepos clones every student repository derived from the given master
// repo names into the current working directory. Already-cloned working
// copies are skipped.
func (s *Service) CloneRepos(ctx context.Context, masterRepoNames, students []string) error {
	if err := s.validateIdentity(); err != nil {
		return err
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

	teams, err := studentTeams(students)
	if err != nil {
		return err
	}
	repoURLs, err := s.API.GetRepoURLs(ctx, masterRepoNames, "", teams)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}

	tasks := make([]models.TransferTask, len(repoURLs))
	for i, url := range repoURLs {
		tasks[i] = models.TransferTask{
			LocalPath: filepath.Join(cwd, platform.RepoBaseName(url)),
			RepoURL:   url,
		}
	}

	logging.Info("cloning into student repos", "count", len(tasks))
	failed, err := s.Git.CloneBatch(ctx, tasks, s.Tries, s.Concurrency)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return transferFailure("clone", failed)
	}

	logging.Info("done cloning student repos")
	return nil
}

// studentTeams builds one single-member team per student, named after the
// student.
func studentTeams(students []string) ([]models.TeamSpec, error) {
	teams := make([]models.TeamSpec, 0, len(students))
	for _, student := range students {
		team, err := models.NewTeamSpec([]string{student}, "")
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, nil
}

// studentRepoSpecs builds one repo spec per (master repo × team)
// combination, owned by the team.
func studentRepoSpecs(masterRepoURLs []string, teams []models.TeamSpec) ([]models.RepoSpec, error) {
	repos := make([]models.RepoSpec, 0, len(masterRepoURLs)*len(teams))
	for _, url := range masterRepoURLs {
		base := platform.RepoBaseName(url)
		for _, team := range teams {
			spec, err := models.NewRepoSpec(
				platform.GenerateRepoName(team.Name, base),
				fmt.Sprintf("%s created for %s", base, team.Name),
				true,
				team.ID,
			)
			if err != nil {
				return nil, err
			}
			repos = append(repos, spec)
		}
	}
	return repos, nil
}

// cloneMasters clones every master repo into cwd and returns their local
// paths in input order. Any master that cannot be cloned aborts the
// workflow: there is nothing useful to push without it.
func (s *Service) cloneMasters(ctx context.Context, masterRepoURLs []string, cwd string) ([]string, error) {
	tasks := make([]models.TransferTask, len(masterRepoURLs))
	paths := make([]string, len(masterRepoURLs))
	for i, url := range masterRepoURLs {
		authed, err := s.insertAuth(url)
		if err != nil {
			return nil, err
		}
		paths[i] = filepath.Join(cwd, platform.RepoBaseName(url))
		tasks[i] = models.TransferTask{
			LocalPath: paths[i],
			RepoURL:   authed,
		}
	}

	failed, err := s.Git.CloneBatch(ctx, tasks, s.Tries, s.Concurrency)
	if err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		return nil, fmt.Errorf("failed to clone master repos %s, aborting",
			strings.Join(repoNamesFromURLs(failed), ", "))
	}
	return paths, nil
}

// pushTasks pairs each master working copy with the student repo URLs
// derived from it, matched on the shared naming scheme.
func pushTasks(masterPaths, repoURLs []string) []models.TransferTask {
	var tasks []models.TransferTask
	for _, path := range masterPaths {
		base := filepath.Base(path)
		for _, url := range repoURLs {
			if strings.HasSuffix(platform.RepoBaseName(url), "-"+base) {
				tasks = append(tasks, models.TransferTask{
					LocalPath: path,
					RepoURL:   url,
					Branch:    defaultBranch,
				})
			}
		}
	}
	return tasks
}
