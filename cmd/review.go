package cmd

import (
	"github.com/spf13/cobra"

	"github.com/edutools/classrepo/pkg/models"
)

var assignReviewsCmd = &cobra.Command{
	Use:   "assign-reviews",
	Short: "Assign students to peer review each other's repos",
	RunE: func(cmd *cobra.Command, args []string) error {
		masterRepoNames, err := cmd.Flags().GetStringSlice("master-repo-names")
		if err != nil {
			return err
		}
		students, err := cmd.Flags().GetStringSlice("students")
		if err != nil {
			return err
		}
		numReviews, err := cmd.Flags().GetInt("num-reviews")
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

		var issue *models.Issue
		if issueTitle != "" {
			issue = &models.Issue{Title: issueTitle, Body: issueBody}
		}

		service, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		return service.AssignPeerReviews(cmd.Context(), masterRepoNames, students, numReviews, issue)
	},
}

func init() {
	assignReviewsCmd.Flags().StringSlice("master-repo-names", nil, "base names of the master repositories")
	assignReviewsCmd.Flags().StringSlice("students", nil, "student usernames")
	assignReviewsCmd.Flags().Int("num-reviews", 1, "how many students review each repo")
	assignReviewsCmd.Flags().String("issue-title", "", "title of the review issue (a default is used when empty)")
	assignReviewsCmd.Flags().String("issue-body", "", "body of the review issue")
	assignReviewsCmd.MarkFlagRequired("master-repo-names")
	assignReviewsCmd.MarkFlagRequired("students")
}
