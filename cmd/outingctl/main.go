package main

import (
	"os"

	"github.com/noah-isme/hostel-outing-api/cmd/outingctl/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
