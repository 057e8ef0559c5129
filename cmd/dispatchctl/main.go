package main

import (
	"fmt"
	"os"

	"github.com/ignite/campaign-dispatch/cmd/dispatchctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
