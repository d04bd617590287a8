package command

import (
	"context"
	"fmt"

	"github.com/edutools/classrepo/internal/logging"
	"github.com/edutools/classrepo/internal/platform"
	"github.com/edutools/classrepo/pkg/models"
)

// reviewTeamSuffix distinguishes per-repo review teams from student teams.
const reviewTeamSuffix = "-review"

// AssignPeerReviews allocates numReviews reviewers to every student
// repository derived from the given master repo names, grants them
// read access through a per-repo review team, and opens a review issue
// assigned to the reviewers. Allocation is round-robin over the student
// list, so a student never reviews their own repository as long as
// numReviews < len(students).
func (s *Service) AssignPeerReviews(ctx context.Context, masterRepoNames, students []string, numReviews int, issue *models.Issue) error {
	if err := validateNonEmpty("master repo names", masterRepoNames); err != nil {
		return err
	}
	if err := validateNonEmpty("students", students); err != nil {
		return err
	}
	if err := validateNoDuplicates("students", students); err != nil {
		return err
	}
	if numReviews < 1 {
		return models.InvalidArgumentError{Msg: fmt.Sprintf("num reviews must be at least 1, got %d", numReviews)}
	}
	if numReviews >= len(students) {
		return models.InvalidArgumentError{Msg: fmt.Sprintf(
			"num reviews must be less than the number of students (%d), got %d", len(students), numReviews)}
	}

	for _, base := range masterRepoNames {
		teams := make([]models.TeamSpec, 0, len(students))
		teamToRepos := make(map[string][]string, len(students))

		for i, student := range students {
			reviewers := make([]string, numReviews)
			for j := 0; j < numReviews; j++ {
				reviewers[j] = students[(i+j+1)%len(students)]
			}

			repoName := platform.GenerateRepoName(student, base)
			team, err := models.NewTeamSpec(reviewers, repoName+reviewTeamSuffix)
			if err != nil {
				return err
			}
			teams = append(teams, team)
			teamToRepos[team.Name] = []string{repoName}
		}

		logging.Info("creating review teams", "master_repo", base, "count", len(teams))
		if _, err := s.API.EnsureTeamsAndMembers(ctx, teams, platform.PermissionPull); err != nil {
			return err
		}
		if err := s.API.AddReposToReviewTeams(ctx, teamToRepos, issue); err != nil {
			return err
		}
	}

	logging.Info("done assigning peer reviews")
	return nil
}
