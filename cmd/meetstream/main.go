package main

import (
	"fmt"
	"os"

	"github.com/saligia28/meetstream/internal/cli"
)

const version = "1.0.0"

func main() {
	deps := &cli.Dependencies{Version: version}
	if err := cli.NewRootCmd(deps).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
