package cmd

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate repositories into the target organization",
	RunE: func(cmd *cobra.Command, args []string) error {
		masterRepoURLs, err := cmd.Flags().GetStringSlice("master-repo-urls")
		if err != nil {
			return err
		}

		service, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		return service.MigrateRepos(cmd.Context(), masterRepoURLs)
	},
}

func init() {
	migrateCmd.Flags().StringSlice("master-repo-urls", nil, "HTTPS urls to the repositories to migrate")
	migrateCmd.MarkFlagRequired("master-repo-urls")
}
