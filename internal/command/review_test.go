package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutools/classrepo/internal/platform"
	"github.com/edutools/classrepo/pkg/models"
)

func TestAssignPeerReviews(t *testing.T) {
	students := []string{"alice", "bob", "cecilia"}
	svc, api, _ := newTestService(t, students...)
	ctx := context.Background()
	require.NoError(t, svc.SetupStudentRepos(ctx, []string{masterURL("week-1")}, students))

	err := svc.AssignPeerReviews(ctx, []string{"week-1"}, students, 2, nil)
	require.NoError(t, err)

	for _, student := range students {
		repoName := student + "-week-1"
		teamName := repoName + "-review"

		team, ok := api.GetTeam(teamName)
		require.True(t, ok, "review team %s should exist", teamName)
		assert.Equal(t, platform.PermissionPull, team.Permission)
		assert.Len(t, team.Members, 2)
		assert.NotContains(t, team.Members, student, "a student must never review their own repo")

		repo, ok := api.GetRepo(repoName)
		require.True(t, ok)
		assert.Contains(t, repo.TeamsWithAccess, teamName)
		require.Len(t, repo.Issues, 1)
		assert.Equal(t, platform.DefaultReviewIssue.Title, repo.Issues[0].Title)
	}
}

func TestAssignPeerReviewsEvenWorkload(t *testing.T) {
	students := make([]string, 6)
	for i := range students {
		students[i] = fmt.Sprintf("student-%d", i)
	}
	svc, api, _ := newTestService(t, students...)
	ctx := context.Background()
	require.NoError(t, svc.SetupStudentRepos(ctx, []string{masterURL("week-1")}, students))

	require.NoError(t, svc.AssignPeerReviews(ctx, []string{"week-1"}, students, 2, nil))

	// Round-robin allocation gives every student the same number of reviews.
	reviews := make(map[string]int)
	for _, student := range students {
		team, ok := api.GetTeam(student + "-week-1-review")
		require.True(t, ok)
		for _, reviewer := range team.Members {
			reviews[reviewer]++
		}
	}
	for _, student := range students {
		assert.Equal(t, 2, reviews[student], "reviews assigned to %s", student)
	}
}

func TestAssignPeerReviewsCustomIssue(t *testing.T) {
	students := []string{"alice", "bob"}
	svc, api, _ := newTestService(t, students...)
	ctx := context.Background()
	require.NoError(t, svc.SetupStudentRepos(ctx, []string{masterURL("week-1")}, students))

	issue := &models.Issue{Title: "Review round 1", Body: "Check the error handling."}
	require.NoError(t, svc.AssignPeerReviews(ctx, []string{"week-1"}, students, 1, issue))

	repo, ok := api.GetRepo("alice-week-1")
	require.True(t, ok)
	require.Len(t, repo.Issues, 1)
	assert.Equal(t, "Review round 1", repo.Issues[0].Title)
	assert.Equal(t, "Check the error handling.", repo.Issues[0].Body)
}

func TestAssignPeerReviewsValidation(t *testing.T) {
	students := []string{"alice", "bob"}

	tests := []struct {
		name       string
		masters    []string
		students   []string
		numReviews int
	}{
		{name: "zero reviews", masters: []string{"week-1"}, students: students, numReviews: 0},
		{name: "reviews equal to students", masters: []string{"week-1"}, students: students, numReviews: 2},
		{name: "reviews above students", masters: []string{"week-1"}, students: students, numReviews: 3},
		{name: "no masters", masters: nil, students: students, numReviews: 1},
		{name: "no students", masters: []string{"week-1"}, students: nil, numReviews: 1},
		{name: "duplicate students", masters: []string{"week-1"}, students: []string{"alice", "alice"}, numReviews: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, api, _ := newTestService(t, students...)

			err := svc.AssignPeerReviews(context.Background(), tt.masters, tt.students, tt.numReviews, nil)

			var invalidArg models.InvalidArgumentError
			assert.ErrorAs(t, err, &invalidArg)
			_, ok := api.GetTeam("alice-week-1-review")
			assert.False(t, ok)
		})
	}
}
