package main

import (
	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Operate the clinic scheduling backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			return config.LoadFile(path)
		},
	}
	root.PersistentFlags().String("config", "", "optional config file layered under the environment")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newAdminTokenCmd())
	root.AddCommand(newAvailabilityCmd())
	return root
}

// databaseURL prefers the --database-url flag over DATABASE_URL.
func databaseURL(cmd *cobra.Command) (string, error) {
	if v, _ := cmd.Flags().GetString("database-url"); v != "" {
		return v, nil
	}
	return config.RequiredString("DATABASE_URL")
}
