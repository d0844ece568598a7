package main

import (
	"os"

	"github.com/harun/agentdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
