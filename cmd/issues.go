package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/edutools/classrepo/pkg/models"
)

var openIssueCmd = &cobra.Command{
	Use:   "open-issue",
	Short: "Open an issue in every student repo",
	RunE: func(cmd *cobra.Command, args []string) error {
		masterRepoNames, err := cmd.Flags().GetStringSlice("master-repo-names")
		if err != nil {
			return err
		}
		students, err := cmd.Flags().GetStringSlice("students")
		if err != nil {
			return err
		}
		title, err := cmd.Flags().GetString("issue-title")
		if err != nil {
			return err
		}
		body, err := cmd.Flags().GetString("issue-body")
		if err != nil {
			return err
		}

		service, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		issue := models.Issue{Title: title, Body: body}
		return service.OpenIssue(cmd.Context(), issue, masterRepoNames, students)
	},
}

var closeIssueCmd = &cobra.Command{
	Use:   "close-issue",
	Short: "Close issues whose titles match a regex in every student repo",
	RunE: func(cmd *cobra.Command, args []string) error {
		masterRepoNames, err := cmd.Flags().GetStringSlice("master-repo-names")
		if err != nil {
			return err
		}
		students, err := cmd.Flags().GetStringSlice("students")
		if err != nil {
			return err
		}
		pattern, err := cmd.Flags().GetString("title-regex")
		if err != nil {
			return err
		}
		titleRegex, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid title regex: %w", err)
		}

		service, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		return service.CloseIssue(cmd.Context(), titleRegex, masterRepoNames, students)
	},
}

var listIssuesCmd = &cobra.Command{
	Use:   "list-issues",
	Short: "List issues in every student repo",
	RunE: func(cmd *cobra.Command, args []string) error {
		masterRepoNames, err := cmd.Flags().GetStringSlice("master-repo-names")
		if err != nil {
			return err
		}
		students, err := cmd.Flags().GetStringSlice("students")
		if err != nil {
			return err
		}
		state, err := cmd.Flags().GetString("state")
		if err != nil {
			return err
		}
		pattern, err := cmd.Flags().GetString("title-regex")
		if err != nil {
			return err
		}

		var titleRegex *regexp.Regexp
		if pattern != "" {
			titleRegex, err = regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("invalid title regex: %w", err)
			}
		}

		service, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		repoIssues, err := service.ListIssues(cmd.Context(), masterRepoNames, students, models.IssueState(state), titleRegex)
		if err != nil {
			return err
		}

		for _, repo := range repoIssues {
			if len(repo.Issues) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no matching issues\n", repo.RepoName)
				continue
			}
			for _, issue := range repo.Issues {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/#%d %s (%s, opened by %s)\n",
					repo.RepoName, issue.Number, issue.Title, issue.State, issue.Author)
			}
		}
		return nil
	},
}

func init() {
	openIssueCmd.Flags().StringSlice("master-repo-names", nil, "base names of the master repositories")
	openIssueCmd.Flags().StringSlice("students", nil, "student usernames")
	openIssueCmd.Flags().String("issue-title", "", "title of the issue")
	openIssueCmd.Flags().String("issue-body", "", "body of the issue")
	openIssueCmd.MarkFlagRequired("master-repo-names")
	openIssueCmd.MarkFlagRequired("students")
	openIssueCmd.MarkFlagRequired("issue-title")

	closeIssueCmd.Flags().StringSlice("master-repo-names", nil, "base names of the master repositories")
	closeIssueCmd.Flags().StringSlice("students", nil, "student usernames")
	closeIssueCmd.Flags().String("title-regex", "", "close issues whose titles match this regex")
	closeIssueCmd.MarkFlagRequired("master-repo-names")
	closeIssueCmd.MarkFlagRequired("students")
	closeIssueCmd.MarkFlagRequired("title-regex")

	listIssuesCmd.Flags().StringSlice("master-repo-names", nil, "base names of the master repositories")
	listIssuesCmd.Flags().StringSlice("students", nil, "student usernames")
	listIssuesCmd.Flags().String("state", "open", "issue state to list (open or closed)")
	listIssuesCmd.Flags().String("title-regex", "", "only list issues whose titles match this regex")
	listIssuesCmd.MarkFlagRequired("master-repo-names")
	listIssuesCmd.MarkFlagRequired("students")
}
