package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepoSpec(t *testing.T) {
	tests := []struct {
		name     string
		repoName string
		wantErr  bool
	}{
		{
			name:     "valid name",
			repoName: "alice-week-1",
			wantErr:  false,
		},
		{
			name:     "name at the limit",
			repoName: strings.Repeat("a", MaxNameLength),
			wantErr:  false,
		},
		{
			name:     "name over the limit",
			repoName: strings.Repeat("a", MaxNameLength+1),
			wantErr:  true,
		},
		{
			name:     "empty name",
			repoName: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := NewRepoSpec(tt.repoName, "a description", true, 42)
			if tt.wantErr {
				var invalidArg InvalidArgumentError
				assert.ErrorAs(t, err, &invalidArg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.repoName, spec.Name)
			assert.Equal(t, "a description", spec.Description)
			assert.True(t, spec.Private)
			assert.Equal(t, int64(42), spec.TeamID)
		})
	}
}

func TestNewTeamSpecDerivesNameFromSortedMembers(t *testing.T) {
	team, err := NewTeamSpec([]string{"cecilia", "alice", "bob"}, "")
	require.NoError(t, err)
	assert.Equal(t, "alice-bob-cecilia", team.Name)
	// The member list itself keeps its order.
	assert.Equal(t, []string{"cecilia", "alice", "bob"}, team.Members)
}

func TestNewTeamSpecSingleMember(t *testing.T) {
	team, err := NewTeamSpec([]string{"alice"}, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", team.Name)
}

func TestNewTeamSpecExplicitName(t *testing.T) {
	team, err := NewTeamSpec([]string{"alice", "bob"}, "group-7")
	require.NoError(t, err)
	assert.Equal(t, "group-7", team.Name)
}

func TestNewTeamSpecRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		members  []string
		teamName string
	}{
		{
			name:    "duplicate members",
			members: []string{"alice", "alice"},
		},
		{
			name:    "empty member username",
			members: []string{"alice", ""},
		},
		{
			name:    "no members and no name",
			members: nil,
		},
		{
			name:     "derived name over the limit",
			members:  []string{strings.Repeat("a", 60), strings.Repeat("b", 60)},
			teamName: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTeamSpec(tt.members, tt.teamName)
			var invalidArg InvalidArgumentError
			assert.ErrorAs(t, err, &invalidArg)
		})
	}
}

func TestTeamSpecWithIDDoesNotMutateReceiver(t *testing.T) {
	team, err := NewTeamSpec([]string{"alice"}, "")
	require.NoError(t, err)

	withID := team.WithID(7)
	assert.Equal(t, int64(7), withID.ID)
	assert.Equal(t, int64(0), team.ID)
}
