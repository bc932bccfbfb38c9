package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var BaseUrl string
var AccessToken string

var client *resty.Client

var rootCmd = &cobra.Command{
	Use:   "scorewatch-cli",
	Short: "scorewatch-cli is a CLI interface for the scorewatch monitoring daemon.",
}

func Execute() {
	client = resty.New().SetBaseURL(BaseUrl)
	if AccessToken != "" {
		client.SetAuthToken(AccessToken)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// checkResponse bails out on transport errors and non-2xx replies.
func checkResponse(res *resty.Response, err error) {
	if err != nil {
		log.Fatal(err)
	}
	if res.IsError() {
		log.Fatalf("%s: %s", res.Status(), res.String())
	}
}
