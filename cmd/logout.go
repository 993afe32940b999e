package cmd

import (
	"github.com/spf13/cobra"

	"storefront/session"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		printer := newPrinter(cmd)

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Session().Phase() != session.PhaseAuthenticated {
			printer.Info("Not signed in.")
			return nil
		}
		if err := a.Session().Logout(cmd.Context()); err != nil {
			return err
		}
		printer.Success("Signed out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
