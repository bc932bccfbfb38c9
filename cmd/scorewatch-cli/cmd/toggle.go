package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(toggleCmd)
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <user-hash>",
	Short: "Flips whether an account is checked by the daemon.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var res struct {
			Enabled bool `json:"enabled"`
		}
		checkResponse(client.R().
			SetContext(cmd.Context()).
			SetResult(&res).
			Post("/api/accounts/" + args[0] + "/toggle"))

		if res.Enabled {
			fmt.Println("enabled")
		} else {
			fmt.Println("disabled")
		}
	},
}
