package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

type cycleOutcome struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

var checkCmd = &cobra.Command{
	Use:   "check [user-hash]",
	Short: "Runs a check cycle right now, for one account or for all of them.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			var res struct {
				Outcome cycleOutcome `json:"outcome"`
			}
			checkResponse(client.R().
				SetContext(cmd.Context()).
				SetResult(&res).
				Post("/api/accounts/" + args[0] + "/check"))

			fmt.Println(res.Outcome.Status)
			if res.Outcome.Detail != "" {
				fmt.Println(res.Outcome.Detail)
			}
			return
		}

		var res struct {
			Results map[string]cycleOutcome `json:"results"`
		}
		checkResponse(client.R().
			SetContext(cmd.Context()).
			SetResult(&res).
			Post("/api/check"))

		t := newTable()
		t.AppendHeader(table.Row{"User hash", "Status", "Detail"})
		for userHash, outcome := range res.Results {
			t.AppendRow(table.Row{userHash, outcome.Status, outcome.Detail})
		}
		t.Render()
	},
}
