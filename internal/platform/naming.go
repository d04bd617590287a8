package platform

import "strings"

// GenerateRepoName derives a student or team repository name from the team
// name and the master repository's base name. The scheme is shared across
// every backend and command: changing it would orphan existing repos.
func GenerateRepoName(teamName, masterRepoBaseName string) string {
	return teamName + "-" + masterRepoBaseName
}

// GenerateRepoNames computes the repository name of every (team × master
// repo) combination, grouped by master repo in input order.
func GenerateRepoNames(teamNames, masterRepoBaseNames []string) []string {
	names := make([]string, 0, len(teamNames)*len(masterRepoBaseNames))
	for _, base := range masterRepoBaseNames {
		for _, team := range teamNames {
			names = append(names, GenerateRepoName(team, base))
		}
	}
	return names
}

// RepoBaseName extracts a repository's base name from its URL or local
// path: the final path segment, with any .git suffix trimmed.
func RepoBaseName(repoURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(repoURL, "/"), ".git")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if idx := strings.LastIndexAny(trimmed, "/\\"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
