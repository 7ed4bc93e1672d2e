package main

import (
	"os"

	"tagset/cmd/tagadmin/commands"
)

func main() {
	if err := commands.NewRootCmd(commands.OpenPostgres).Execute(); err != nil {
		os.Exit(1)
	}
}
