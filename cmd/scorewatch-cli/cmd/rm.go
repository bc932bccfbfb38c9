package cmd

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rmCmd)
}

var rmCmd = &cobra.Command{
	Use:   "rm <user-hash>",
	Short: "Deletes an account and its check state.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		checkResponse(client.R().
			SetContext(cmd.Context()).
			Delete("/api/accounts/" + args[0]))
	},
}
