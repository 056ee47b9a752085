// Command ragdesk is the entry point for the ragdesk document question
// answering service. It provides a CLI (via Cobra) for ingestion and
// one-shot questions, and an HTTP server for everything else.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragdesk/cmd/ragdesk/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
