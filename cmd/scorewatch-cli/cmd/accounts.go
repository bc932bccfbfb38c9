package cmd

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(accountsCmd)
}

type accountInfo struct {
	UserHash       string `json:"user_hash"`
	Enabled        bool   `json:"enabled"`
	SessionExpired bool   `json:"session_expired"`
	PushCount      int64  `json:"push_count"`
	LastCheck      int64  `json:"last_check"`
	CreatedAt      int64  `json:"created_at"`
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Lists the monitored accounts.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var res struct {
			Accounts []accountInfo `json:"accounts"`
		}
		checkResponse(client.R().
			SetContext(cmd.Context()).
			SetResult(&res).
			Get("/api/accounts"))

		t := newTable()
		t.AppendHeader(table.Row{"User hash", "Enabled", "Expired", "Pushes", "Last check"})
		for _, a := range res.Accounts {
			lastCheck := "never"
			if a.LastCheck > 0 {
				lastCheck = time.Unix(a.LastCheck, 0).Format(time.ANSIC)
			}
			t.AppendRow(table.Row{a.UserHash, a.Enabled, a.SessionExpired, a.PushCount, lastCheck})
		}
		t.Render()
	},
}
