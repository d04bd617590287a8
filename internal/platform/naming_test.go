package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRepoName(t *testing.T) {
	assert.Equal(t, "alice-week-1", GenerateRepoName("alice", "week-1"))
	assert.Equal(t, "alice-bob-week-1", GenerateRepoName("alice-bob", "week-1"))
}

func TestGenerateRepoNames(t *testing.T) {
	got := GenerateRepoNames([]string{"alice", "bob"}, []string{"week-1", "week-2"})
	// Grouped by master repo, teams in input order.
	want := []string{"alice-week-1", "bob-week-1", "alice-week-2", "bob-week-2"}
	assert.Equal(t, want, got)
}

func TestGenerateRepoNamesEmpty(t *testing.T) {
	assert.Empty(t, GenerateRepoNames(nil, []string{"week-1"}))
	assert.Empty(t, GenerateRepoNames([]string{"alice"}, nil))
}

func TestRepoBaseName(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "https url", url: "https://github.com/course-org/week-1", want: "week-1"},
		{name: "https url with .git", url: "https://github.com/course-org/week-1.git", want: "week-1"},
		{name: "trailing slash", url: "https://github.com/course-org/week-1/", want: "week-1"},
		{name: "local unix path", url: "/home/teacher/repos/week-1", want: "week-1"},
		{name: "bare name", url: "week-1", want: "week-1"},
		{name: "nested gitlab path", url: "https://gitlab.example.com/course/alice/alice-week-1.git", want: "alice-week-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepoBaseName(tt.url))
		})
	}
}
