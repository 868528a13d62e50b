package main

import (
	"context"
	"fmt"
	"os"

	"tradecopilot/internal/cli"
	"tradecopilot/internal/logging"
)

func main() {
	app := &cli.App{Logger: logging.NewLogger()}

	rootCmd := cli.NewRootCmd(app)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
