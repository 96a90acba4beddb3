// DocWallet: a document-driven treasury agent.
package main

import (
	"os"

	"github.com/Naveen-807/Franky-Docs-sub000/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
