package cmd

import (
	"github.com/spf13/cobra"

	"github.com/edutools/classrepo/pkg/models"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Push the current master repo content to existing student repos",
	RunE: func(cmd *cobra.Command, args []string) error {
		masterRepoURLs, err := cmd.Flags().GetStringSlice("master-repo-urls")
		if err != nil {
			return err
		}
		students, err := cmd.Flags().GetStringSlice("students")
		if err != nil {
			return err
		}
		issueTitle, err := cmd.Flags().GetString("issue-title")
		if err != nil {
			return err
		}
		issueBody, err := cmd.Flags().GetString("issue-body")
		if err != nil {
			return err
		}

		// An issue is only opened in repos the push failed for, and
		// only when a title was supplied.
		var issue *models.Issue
		if issueTitle != "" {
			issue = &models.Issue{Title: issueTitle, Body: issueBody}
		}

		service, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		return service.UpdateStudentRepos(cmd.Context(), masterRepoURLs, students, issue)
	},
}

func init() {
	updateCmd.Flags().StringSlice("master-repo-urls", nil, "HTTPS urls to the master repositories")
	updateCmd.Flags().StringSlice("students", nil, "student usernames")
	updateCmd.Flags().String("issue-title", "", "title of the issue to open in repos the push fails for")
	updateCmd.Flags().String("issue-body", "", "body of the issue to open in repos the push fails for")
	updateCmd.MarkFlagRequired("master-repo-urls")
	updateCmd.MarkFlagRequired("students")
}
