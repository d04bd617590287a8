// Package models defines data structures shared across the application.
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MaxNameLength is the longest team or repository name the hosting platforms
// accept (100 characters on both GitHub and GitLab).
const MaxNameLength = 100

// IssueState is the lifecycle state of an issue on the hosting platform.
type IssueState string

const (
	// IssueStateOpen marks an issue that has not been closed.
	IssueStateOpen IssueState = "open"
	// IssueStateClosed marks an issue that has been closed.
	IssueStateClosed IssueState = "closed"
)

// RepoSpec describes a repository that should exist on the hosting platform.
// It is a value object: construct it with NewRepoSpec and never mutate it.
type RepoSpec struct {
	// Name is the repository name, at most MaxNameLength characters.
	Name string

	// Description is the repository description shown on the platform.
	Description string

	// Private reports whether the repository should be private.
	Private bool

	// TeamID is the platform identifier of the owning team, if any.
	// Zero means no owning team. The value is opaque to callers; only the
	// platform backend that produced it interprets it.
	TeamID int64
}

// NewRepoSpec creates a RepoSpec, enforcing the platform name length limit
// before any network call is made.
func NewRepoSpec(name, description string, private bool, teamID int64) (RepoSpec, error) {
	if name == "" {
		return RepoSpec{}, InvalidArgumentError{Msg: "repository name must not be empty"}
	}
	if err := checkNameLength(name); err != nil {
		return RepoSpec{}, err
	}
	return RepoSpec{
		Name:        name,
		Description: description,
		Private:     private,
		TeamID:      teamID,
	}, nil
}

// TeamSpec describes a team of students and its reconciled platform identity.
type TeamSpec struct {
	// Name is the team name, at most MaxNameLength characters.
	Name string

	// Members holds the usernames of the team members. Order carries no
	// meaning and duplicates are rejected at construction.
	Members []string

	// ID is the opaque platform identifier, assigned once the team exists
	// on the platform. Zero means not yet reconciled.
	ID int64
}

// NewTeamSpec creates a TeamSpec. If name is empty, the name is derived by
// joining the sorted member usernames with '-', so a single-student team
// carries the student's username.
func NewTeamSpec(members []string, name string) (TeamSpec, error) {
	seen := make(map[string]bool, len(members))
	for _, member := range members {
		if member == "" {
			return TeamSpec{}, InvalidArgumentError{Msg: "team member username must not be empty"}
		}
		if seen[member] {
			return TeamSpec{}, InvalidArgumentError{Msg: fmt.Sprintf("duplicate team member: %s", member)}
		}
		seen[member] = true
	}

	if name == "" {
		if len(members) == 0 {
			return TeamSpec{}, InvalidArgumentError{Msg: "team needs an explicit name or at least one member"}
		}
		sorted := make([]string, len(members))
		copy(sorted, members)
		sort.Strings(sorted)
		name = strings.Join(sorted, "-")
	}
	if err := checkNameLength(name); err != nil {
		return TeamSpec{}, err
	}

	return TeamSpec{Name: name, Members: members}, nil
}

// WithID returns a copy of the team carrying the given platform identifier.
func (t TeamSpec) WithID(id int64) TeamSpec {
	t.ID = id
	return t
}

// Issue represents an issue in a repository on the hosting platform. After
// creation the platform owns the canonical state; this is a snapshot.
type Issue struct {
	// Title is the issue title.
	Title string

	// Body is the issue body text.
	Body string

	// Number is the platform-assigned issue number. Zero before creation.
	Number int

	// CreatedAt is when the issue was created on the platform.
	CreatedAt time.Time

	// Author is the username of the issue author.
	Author string

	// State is the current state of the issue.
	State IssueState
}

// TransferTask is a single clone or push to perform. Immutable once created.
// Tasks are identified by their (RepoURL, Branch) pair for retry bookkeeping;
// no two tasks in one batch may share that identity.
type TransferTask struct {
	// LocalPath is the local working copy: the clone destination, or the
	// repository to push from.
	LocalPath string

	// RepoURL is the credential-bearing HTTPS URL of the remote.
	RepoURL string

	// Branch is the branch to clone or push. May be empty for clones, in
	// which case the remote's default branch is used.
	Branch string
}

// checkNameLength rejects names longer than the platform limit. The guard
// runs client-side so a bad name fails before any platform state is touched.
func checkNameLength(name string) error {
	if len(name) > MaxNameLength {
		return InvalidArgumentError{Msg: fmt.Sprintf(
			"generated team/repository name is too long, was %d chars, max is %d chars",
			len(name), MaxNameLength,
		)}
	}
	return nil
}
