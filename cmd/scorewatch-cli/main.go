package main

import (
	"os"

	"scorewatch-backend/cmd/scorewatch-cli/cmd"
)

func main() {
	baseUrl, ok := os.LookupEnv("SCOREWATCH_BASE_URL")
	if !ok {
		baseUrl = "http://localhost:8444"
	}
	cmd.BaseUrl = baseUrl
	cmd.AccessToken = os.Getenv("SCOREWATCH_ACCESS_TOKEN")

	cmd.Execute()
}
