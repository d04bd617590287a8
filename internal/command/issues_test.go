package command

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutools/classrepo/pkg/models"
)

func TestOpenIssue(t *testing.T) {
	svc, api, _ := newTestService(t, "alice", "bob")
	ctx := context.Background()
	require.NoError(t, svc.SetupStudentRepos(ctx, []string{masterURL("week-1")}, []string{"alice", "bob"}))

	issue := models.Issue{Title: "Grading done", Body: "See the feedback branch."}
	err := svc.OpenIssue(ctx, issue, []string{"week-1"}, []string{"alice", "bob"})
	require.NoError(t, err)

	for _, name := range []string{"alice-week-1", "bob-week-1"} {
		repo, ok := api.GetRepo(name)
		require.True(t, ok)
		require.Len(t, repo.Issues, 1)
		assert.Equal(t, "Grading done", repo.Issues[0].Title)
		assert.Equal(t, "See the feedback branch.", repo.Issues[0].Body)
		assert.Equal(t, models.IssueStateOpen, repo.Issues[0].State)
	}
}

func TestOpenIssueRequiresTitle(t *testing.T) {
	svc, _, _ := newTestService(t, "alice")

	err := svc.OpenIssue(context.Background(), models.Issue{Body: "no title"}, []string{"week-1"}, []string{"alice"})

	var invalidArg models.InvalidArgumentError
	assert.ErrorAs(t, err, &invalidArg)
}

func TestCloseIssue(t *testing.T) {
	svc, api, _ := newTestService(t, "alice", "bob")
	ctx := context.Background()
	require.NoError(t, svc.SetupStudentRepos(ctx, []string{masterURL("week-1")}, []string{"alice", "bob"}))

	require.NoError(t, svc.OpenIssue(ctx, models.Issue{Title: "WIP: grading"}, []string{"week-1"}, []string{"alice", "bob"}))
	require.NoError(t, svc.OpenIssue(ctx, models.Issue{Title: "Question"}, []string{"week-1"}, []string{"alice", "bob"}))

	err := svc.CloseIssue(ctx, regexp.MustCompile(`^WIP`), []string{"week-1"}, []string{"alice", "bob"})
	require.NoError(t, err)

	for _, name := range []string{"alice-week-1", "bob-week-1"} {
		repo, ok := api.GetRepo(name)
		require.True(t, ok)
		require.Len(t, repo.Issues, 2)
		assert.Equal(t, models.IssueStateClosed, repo.Issues[0].State, "WIP issue in %s", name)
		assert.Equal(t, models.IssueStateOpen, repo.Issues[1].State, "other issue in %s", name)
	}
}

func TestCloseIssueRequiresRegex(t *testing.T) {
	svc, _, _ := newTestService(t, "alice")

	err := svc.CloseIssue(context.Background(), nil, []string{"week-1"}, []string{"alice"})

	var invalidArg models.InvalidArgumentError
	assert.ErrorAs(t, err, &invalidArg)
}

func TestListIssues(t *testing.T) {
	svc, _, _ := newTestService(t, "alice", "bob")
	ctx := context.Background()
	require.NoError(t, svc.SetupStudentRepos(ctx, []string{masterURL("week-1")}, []string{"alice", "bob"}))

	require.NoError(t, svc.OpenIssue(ctx, models.Issue{Title: "WIP: grading"}, []string{"week-1"}, []string{"alice"}))
	require.NoError(t, svc.OpenIssue(ctx, models.Issue{Title: "Question"}, []string{"week-1"}, []string{"alice", "bob"}))

	all, err := svc.ListIssues(ctx, []string{"week-1"}, []string{"alice", "bob"}, models.IssueStateOpen, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	byRepo := make(map[string]int)
	for _, repoIssues := range all {
		byRepo[repoIssues.RepoName] = len(repoIssues.Issues)
	}
	assert.Equal(t, 2, byRepo["alice-week-1"])
	assert.Equal(t, 1, byRepo["bob-week-1"])

	wip, err := svc.ListIssues(ctx, []string{"week-1"}, []string{"alice", "bob"}, models.IssueStateOpen, regexp.MustCompile(`^WIP`))
	require.NoError(t, err)
	total := 0
	for _, repoIssues := range wip {
		total += len(repoIssues.Issues)
	}
	assert.Equal(t, 1, total)
}

func TestIssueWorkflowsValidateStudents(t *testing.T) {
	svc, _, _ := newTestService(t, "alice")
	ctx := context.Background()
	var invalidArg models.InvalidArgumentError

	err := svc.OpenIssue(ctx, models.Issue{Title: "x"}, []string{"week-1"}, []string{"alice", "alice"})
	assert.ErrorAs(t, err, &invalidArg)

	err = svc.CloseIssue(ctx, regexp.MustCompile(`x`), nil, []string{"alice"})
	assert.ErrorAs(t, err, &invalidArg)

	_, err = svc.ListIssues(ctx, []string{"week-1"}, nil, models.IssueStateOpen, nil)
	assert.ErrorAs(t, err, &invalidArg)
}
