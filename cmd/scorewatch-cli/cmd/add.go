package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <account> <password> <webhook-url> [webhook-secret]",
	Short: "Registers a portal account for score monitoring.",
	Args:  cobra.RangeArgs(3, 4),
	Run: func(cmd *cobra.Command, args []string) {
		body := map[string]string{
			"account":     args[0],
			"password":    args[1],
			"webhook_url": args[2],
		}
		if len(args) == 4 {
			body["webhook_secret"] = args[3]
		}

		var res struct {
			UserHash string `json:"user_hash"`
		}
		checkResponse(client.R().
			SetContext(cmd.Context()).
			SetBody(body).
			SetResult(&res).
			Post("/api/accounts"))

		fmt.Println(res.UserHash)
	},
}
