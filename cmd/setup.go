package cmd

import (
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create student teams and repos and push master repo content to them",
	RunE: func(cmd *cobra.Command, args []string) error {
		masterRepoURLs, err := cmd.Flags().GetStringSlice("master-repo-urls")
		if err != nil {
			return err
		}
		students, err := cmd.Flags().GetStringSlice("students")
		if err != nil {
			return err
		}

		service, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		return service.SetupStudentRepos(cmd.Context(), masterRepoURLs, students)
	},
}

func init() {
	setupCmd.Flags().StringSlice("master-repo-urls", nil, "HTTPS urls to the master repositories")
	setupCmd.Flags().StringSlice("students", nil, "student usernames")
	setupCmd.MarkFlagRequired("master-repo-urls")
	setupCmd.MarkFlagRequired("students")
}
