package cmd

import (
	"github.com/spf13/cobra"
)

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Clone student repos into the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		masterRepoNames, err := cmd.Flags().GetStringSlice("master-repo-names")
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
		return service.CloneRepos(cmd.Context(), masterRepoNames, students)
	},
}

func init() {
	cloneCmd.Flags().StringSlice("master-repo-names", nil, "base names of the master repositories")
	cloneCmd.Flags().StringSlice("students", nil, "student usernames")
	cloneCmd.MarkFlagRequired("master-repo-names")
	cloneCmd.MarkFlagRequired("students")
}
